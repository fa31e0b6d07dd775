package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/ppiankov/geotag/internal/logging"
	"github.com/ppiankov/geotag/internal/model"
)

// ErrUnsupportedFormat is returned for input files with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported document format")

// SupportedExtensions lists the file extensions LoadDocument understands
var SupportedExtensions = []string{".json", ".pdf", ".html", ".htm", ".txt"}

// LoadDocument reads a document from path, choosing the format by extension.
// Malformed pages are logged, counted in Document.Skipped and left out.
func LoadDocument(path string) (model.Document, error) {
	doc := model.Document{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path: path,
	}

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = loadJSON(path, &doc)
	case ".pdf":
		err = loadPDF(path, &doc)
	case ".html", ".htm":
		err = loadHTML(path, &doc)
	case ".txt":
		err = loadText(path, &doc)
	default:
		return doc, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return doc, fmt.Errorf("load %s: %w", path, err)
	}

	return doc, nil
}

// loadJSON accepts a list of [page_id, text] pairs or {"page_id", "text"} objects
func loadJSON(path string, doc *model.Document) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode page list: %w", err)
	}

	log := logging.GetLogger().WithField("document", doc.Name)
	for i, raw := range entries {
		page, err := decodePage(raw)
		if err != nil {
			log.WithError(err).WithField("entry", i).Warn("Skipping malformed page")
			doc.Skipped++
			continue
		}
		doc.Pages = append(doc.Pages, page)
	}

	return nil
}

func decodePage(raw json.RawMessage) (model.Page, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return model.Page{}, errors.New("empty entry")
	}

	switch raw[0] {
	case '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil {
			return model.Page{}, err
		}
		if len(pair) != 2 {
			return model.Page{}, fmt.Errorf("expected [page_id, text], got %d elements", len(pair))
		}
		id, err := decodePageID(pair[0])
		if err != nil {
			return model.Page{}, err
		}
		var text string
		if err := json.Unmarshal(pair[1], &text); err != nil {
			return model.Page{}, fmt.Errorf("page text: %w", err)
		}
		return model.Page{ID: id, Text: text}, nil

	case '{':
		var obj struct {
			PageID json.RawMessage `json:"page_id"`
			Text   *string         `json:"text"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return model.Page{}, err
		}
		if obj.Text == nil {
			return model.Page{}, errors.New("missing text")
		}
		id, err := decodePageID(obj.PageID)
		if err != nil {
			return model.Page{}, err
		}
		return model.Page{ID: id, Text: *obj.Text}, nil
	}

	return model.Page{}, fmt.Errorf("unexpected entry %.20s", string(raw))
}

// decodePageID accepts an integer or a string holding one
func decodePageID(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, errors.New("missing page_id")
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		id, err := strconv.Atoi(n.String())
		if err != nil {
			return 0, fmt.Errorf("page_id %s is not an integer", n)
		}
		return id, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("page_id: %w", err)
	}
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("page_id %q is not an integer", s)
	}
	return id, nil
}

func loadPDF(path string, doc *model.Document) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}

	log := logging.GetLogger().WithField("document", doc.Name)
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			log.WithField("page_id", i).Warn("Skipping missing PDF page")
			doc.Skipped++
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.WithError(err).WithField("page_id", i).Warn("Skipping unreadable PDF page")
			doc.Skipped++
			continue
		}
		doc.Pages = append(doc.Pages, model.Page{ID: i, Text: text})
	}

	return nil
}

func loadHTML(path string, doc *model.Document) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	doc.Pages = []model.Page{{ID: 1, Text: VisibleText(root)}}
	return nil
}

// VisibleText extracts text nodes from HTML, skipping scripts and styles.
// Block-level elements end a line so sentence breaks survive.
func VisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				if buf.Len() > 0 {
					last := buf.String()[buf.Len()-1]
					if last != ' ' && last != '\n' {
						buf.WriteByte(' ')
					}
				}
				buf.WriteString(text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) && buf.Len() > 0 {
			if buf.String()[buf.Len()-1] != '\n' {
				buf.WriteByte('\n')
			}
		}
	}

	walk(n)
	return strings.TrimSpace(buf.String())
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section", "article", "blockquote", "pre", "title":
		return true
	}
	return false
}

// loadText splits plain text into pages on form feeds, numbering from 1
func loadText(path string, doc *model.Document) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for i, text := range strings.Split(string(data), "\f") {
		doc.Pages = append(doc.Pages, model.Page{ID: i + 1, Text: text})
	}
	return nil
}
