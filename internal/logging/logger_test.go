package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	assert.Equal(t, logrus.DebugLevel, SetLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())

	assert.Equal(t, logrus.InfoLevel, SetLevel("not-a-level"))
	assert.Equal(t, logrus.InfoLevel, GetLogger().GetLevel())
}

func TestLeveledLogrus_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.Out = &buf
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	leveled := NewLeveledLogrus(l)
	leveled.Warn("retrying", "url", "http://example.com", "attempt", 2, "dangling")

	out := buf.String()
	assert.Contains(t, out, "retrying")
	assert.Contains(t, out, "url=\"http://example.com\"")
	assert.Contains(t, out, "attempt=2")
	assert.NotContains(t, out, "dangling")
}
