package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/ppiankov/geotag/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDocument_JSON(t *testing.T) {
	path := writeFile(t, "Journal 1803.json", `[
		[1, "Left Keswick."],
		{"page_id": "2", "text": "Reached Grasmere."},
		["3", "Rain."],
		[4],
		{"text": "no id"},
		"junk",
		[5, 6],
		{"page_id": 1.5, "text": "fraction"}
	]`)

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	assert.Equal(t, "Journal 1803", doc.Name)
	assert.Equal(t, path, doc.Path)
	assert.Equal(t, []model.Page{
		{ID: 1, Text: "Left Keswick."},
		{ID: 2, Text: "Reached Grasmere."},
		{ID: 3, Text: "Rain."},
	}, doc.Pages)
	assert.Equal(t, 5, doc.Skipped)
}

func TestLoadDocument_JSONNotAList(t *testing.T) {
	path := writeFile(t, "bad.json", `{"page_id": 1}`)

	_, err := LoadDocument(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode page list")
}

func TestLoadDocument_Text(t *testing.T) {
	path := writeFile(t, "notes.txt", "first page\fsecond page\f")

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	require.Len(t, doc.Pages, 3)
	assert.Equal(t, model.Page{ID: 1, Text: "first page"}, doc.Pages[0])
	assert.Equal(t, model.Page{ID: 2, Text: "second page"}, doc.Pages[1])
	assert.Equal(t, "", doc.Pages[2].Text)
}

func TestLoadDocument_HTML(t *testing.T) {
	path := writeFile(t, "page.HTML", `<html><head><title>Tour</title><style>p{}</style></head>
<body><p>Hello <b>Keswick</b></p><script>var x = 1;</script><div>Next  stop</div></body></html>`)

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 1, doc.Pages[0].ID)
	assert.Equal(t, "Tour\nHello Keswick\nNext stop", doc.Pages[0].Text)
}

func TestLoadDocument_Unsupported(t *testing.T) {
	path := writeFile(t, "letter.docx", "")

	_, err := LoadDocument(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadDocument_Missing(t *testing.T) {
	_, err := LoadDocument(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestVisibleText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"skips noscript", `<p>a</p><noscript>enable js</noscript><p>b</p>`, "a\nb"},
		{"inline joins with space", `<span>Derwent</span><span>Water</span>`, "Derwent Water"},
		{"collapses whitespace", "<p>  the\n\n  fells  </p>", "the fells"},
		{"empty", ``, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := html.Parse(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, VisibleText(root))
		})
	}
}
