package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor_AddsTriple(t *testing.T) {
	var buf bytes.Buffer
	base, _ := New(Config{Level: "debug"}, &buf, nil)

	For(base, SubsystemDownloader, "hitomi", RoleNetwork).Info("hello")

	out := buf.String()
	assert.Contains(t, out, "subsystem=downloader")
	assert.Contains(t, out, "service=hitomi")
	assert.Contains(t, out, "role=network")
}

func TestFor_DefaultService(t *testing.T) {
	var buf bytes.Buffer
	base, _ := New(Config{}, &buf, nil)
	For(base, SubsystemDatabase, "", RoleBase).Info("x")
	assert.Contains(t, buf.String(), "service=none")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestAlerts(t *testing.T) {
	var buf bytes.Buffer
	alerts := &Alerts{}
	var warns, halts int
	alerts.OnWarn(func(slog.Record) { warns++ })
	alerts.OnHalt(func(slog.Record) { halts++ })

	log, _ := New(Config{Level: "error"}, &buf, alerts)
	log.Info("ignored")
	log.Warn("careful")
	log.With("k", "v").Error("stop")

	assert.Equal(t, 2, warns)
	assert.Equal(t, 1, halts)
	assert.NotContains(t, buf.String(), "careful", "warn is below the configured level")
	assert.Contains(t, buf.String(), "stop")
}

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "galleria.log")
	var buf bytes.Buffer
	log, closer := New(Config{File: path}, &buf, nil)
	log.Info("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.Contains(t, buf.String(), "to file")
}
