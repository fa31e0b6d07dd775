package logging

import (
	"os"
	"sync"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

var (
	once   sync.Once
	logger *logrus.Logger
)

// GetLogger returns the process-wide logger
func GetLogger() *logrus.Logger {
	// Singleton so the level can be changed once config is loaded
	once.Do(func() {
		logger = logrus.New()
		logger.Out = os.Stderr
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			PadLevelText:  true,
		})
	})

	return logger
}

// SetLevel parses level and applies it. Unknown levels fall back to info.
func SetLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	GetLogger().SetLevel(lvl)
	return lvl
}

var _ retryablehttp.LeveledLogger = &LeveledLogrus{}

// LeveledLogrus adapts a logrus logger to the key/value logger retryablehttp expects
type LeveledLogrus struct {
	*logrus.Logger
}

// NewLeveledLogrus wraps l
func NewLeveledLogrus(l *logrus.Logger) *LeveledLogrus {
	return &LeveledLogrus{Logger: l}
}

func (l *LeveledLogrus) fields(keysAndValues ...interface{}) logrus.Fields {
	fields := make(logrus.Fields)

	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}

	return fields
}

func (l *LeveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	l.WithFields(l.fields(keysAndValues...)).Error(msg)
}

func (l *LeveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	l.WithFields(l.fields(keysAndValues...)).Info(msg)
}

// Debug is used for retryablehttp's per-request chatter
func (l *LeveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	l.WithFields(l.fields(keysAndValues...)).Debug(msg)
}

func (l *LeveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	l.WithFields(l.fields(keysAndValues...)).Warn(msg)
}
