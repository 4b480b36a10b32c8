package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidanlsb/sramp/internal/testutil"
)

type recordingCatalog struct {
	mu      sync.Mutex
	ingests []string
	removes []string
	fail    map[string]error
}

func (c *recordingCatalog) IngestPath(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ingests = append(c.ingests, filepath.Base(path))
	return c.fail[filepath.Base(path)]
}

func (c *recordingCatalog) RemovePath(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removes = append(c.removes, filepath.Base(path))
	return nil
}

func newWatcher(t *testing.T, root string, cat Catalog, onChange func(string, Op, error)) *Watcher {
	t.Helper()
	w, err := New(Config{
		Root:       root,
		Catalog:    cat,
		Extensions: []string{".xsd", ".md"},
		Debounce:   time.Second,
		OnChange:   onChange,
	})
	require.NoError(t, err)
	return w
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Catalog: &recordingCatalog{}})
	assert.Error(t, err)
	_, err = New(Config{Root: t.TempDir()})
	assert.Error(t, err)
}

func TestSyncIngestsMatchingFiles(t *testing.T) {
	ws := testutil.NewWorkspace(t)
	for _, f := range []string{
		"orders.xsd",
		"docs/guide.MD",
		"docs/image.png",
		".git/config.md",
		"node_modules/pkg/readme.md",
		".hidden/notes.md",
	} {
		ws.WithFile(f, "x")
	}
	root := ws.Build().Path
	cat := &recordingCatalog{fail: map[string]error{"guide.MD": errors.New("boom")}}

	var failed []string
	w := newWatcher(t, root, cat, func(path string, op Op, err error) {
		if err != nil {
			failed = append(failed, filepath.Base(path))
		}
	})

	n, err := w.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sort.Strings(cat.ingests)
	assert.Equal(t, []string{"guide.MD", "orders.xsd"}, cat.ingests)
	assert.Equal(t, []string{"guide.MD"}, failed)
}

func TestEventsAreDebounced(t *testing.T) {
	root := t.TempDir()
	cat := &recordingCatalog{}
	w := newWatcher(t, root, cat, nil)
	ctx := context.Background()
	path := filepath.Join(root, "orders.xsd")

	w.handleEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Create})
	w.handleEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write})
	w.handleEvent(ctx, fsnotify.Event{Name: filepath.Join(root, "notes.txt"), Op: fsnotify.Write})

	w.processPending(ctx, time.Now())
	assert.Empty(t, cat.ingests)

	w.processPending(ctx, time.Now().Add(2*time.Second))
	assert.Equal(t, []string{"orders.xsd"}, cat.ingests)

	w.processPending(ctx, time.Now().Add(4*time.Second))
	assert.Len(t, cat.ingests, 1)
}

func TestRemoveCancelsPendingIngest(t *testing.T) {
	root := t.TempDir()
	cat := &recordingCatalog{}
	w := newWatcher(t, root, cat, nil)
	ctx := context.Background()
	path := filepath.Join(root, "guide.md")

	w.handleEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Write})
	w.handleEvent(ctx, fsnotify.Event{Name: path, Op: fsnotify.Remove})
	w.processPending(ctx, time.Now().Add(time.Hour))

	assert.Empty(t, cat.ingests)
	assert.Equal(t, []string{"guide.md"}, cat.removes)
}

func TestMatches(t *testing.T) {
	root := t.TempDir()
	w := newWatcher(t, root, &recordingCatalog{}, nil)

	assert.True(t, w.matches(filepath.Join(root, "a", "b.xsd")))
	assert.False(t, w.matches(filepath.Join(root, "a", "b.txt")))
	assert.False(t, w.matches(filepath.Join(root, ".git", "b.xsd")))
	assert.False(t, w.matches(filepath.Join(filepath.Dir(root), "other.xsd")))
}
