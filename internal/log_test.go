package internal

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelError, ParseLogLevel("error"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, LogLevelTrace, ParseLogLevel(" trace "))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("loud"))
}

func TestLoggerLevelsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	log.SetFlags(0)
	defer log.SetFlags(log.LstdFlags)

	l := NewLogger(LogLevelWarn).With("Upload")
	l.Info("hidden")
	l.Warn("sheet %q missing", "Hoja1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `[WARN] [Upload] sheet "Hoja1" missing`)
}

func TestDerivedLoggersFollowParentLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	log.SetFlags(0)
	defer log.SetFlags(log.LstdFlags)

	parent := NewLogger(LogLevelInfo)
	child := parent.With("Report")

	child.Debug("before")
	parent.SetLevel(LogLevelDebug)
	child.Debug("after")
	assert.Equal(t, LogLevelDebug, child.GetLevel())

	parent.SetLevel(LogLevelError)
	child.Info("silenced")

	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "[DEBUG] [Report] after")
	assert.NotContains(t, buf.String(), "silenced")
}
