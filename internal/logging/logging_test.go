package logging

import (
	"bytes"
	"testing"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFiltersLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, FormatLogfmt, "warn")
	require.NoError(t, err)

	level.Info(logger).Log("msg", "hidden")
	level.Warn(logger).Log("msg", "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "level=warn")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, FormatJSON, "debug")
	require.NoError(t, err)

	level.Debug(logger).Log("msg", "hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestNewRejectsUnknownOptions(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, "xml", "info")
	require.Error(t, err)

	_, err = NewWithWriter(&bytes.Buffer{}, FormatLogfmt, "loud")
	require.Error(t, err)
}

func TestSinkLifecycle(t *testing.T) {
	sink := NewSink()
	logger := log.With(sink, "component", "test")

	level.Info(logger).Log("msg", "fine")
	level.Warn(logger).Log("msg", "join fetch failed")
	level.Error(logger).Log("msg", "formula failed")

	entries := sink.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, 2, sink.Problems())

	var buf bytes.Buffer
	require.NoError(t, sink.Flush(log.NewLogfmtLogger(&buf)))
	assert.Contains(t, buf.String(), "join fetch failed")
	assert.Contains(t, buf.String(), "component=test")
	assert.Empty(t, sink.Entries())

	level.Warn(logger).Log("msg", "again")
	sink.Clear()
	assert.Zero(t, sink.Problems())
}
