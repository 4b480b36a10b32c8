package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/sramp/internal/model"
)

func newLogger(t *testing.T) *Logger {
	t.Helper()
	l := New(filepath.Join(t.TempDir(), "catalog.db"), true)
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		ts = ts.Add(time.Hour)
		return ts
	}
	return l
}

func TestLogAndRead(t *testing.T) {
	l := newLogger(t)
	primary := &model.Artifact{UUID: "u-1", Name: "orders.xsd", Model: model.ModelXSD, Type: "XsdDocument"}

	require.NoError(t, l.LogIngest(primary, "/docs/orders.xsd", 3))
	require.NoError(t, l.LogDelete("u-2"))
	require.NoError(t, l.LogRemove("/docs/common.xsd", 2))

	entries, err := l.Read()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, OpIngest, entries[0].Operation)
	assert.Equal(t, "orders.xsd", entries[0].Name)
	assert.EqualValues(t, 3, entries[0].Extra["derived"])
	assert.Equal(t, OpDelete, entries[1].Operation)
	assert.Equal(t, OpRemove, entries[2].Operation)
	assert.Equal(t, "/docs/common.xsd", entries[2].Path)
	assert.True(t, entries[0].Timestamp.Before(entries[1].Timestamp))
}

func TestReadFilters(t *testing.T) {
	l := newLogger(t)
	require.NoError(t, l.LogDelete("a"))
	require.NoError(t, l.LogDelete("b"))
	require.NoError(t, l.LogDelete("a"))

	forA, err := l.ReadForArtifact("a")
	require.NoError(t, err)
	assert.Len(t, forA, 2)

	since, err := l.ReadSince(time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "b", since[0].UUID)
}

func TestReadSkipsMalformedLines(t *testing.T) {
	l := newLogger(t)
	require.NoError(t, l.LogDelete("a"))

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, l.LogDelete("b"))

	entries, err := l.Read()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDisabledLoggerWritesNothing(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "catalog.db"), false)
	require.NoError(t, l.LogDelete("a"))
	assert.NoFileExists(t, l.Path())

	entries, err := l.Read()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
