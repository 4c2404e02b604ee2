package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "created", EventTypeCreated.String())
	assert.Equal(t, "modified", EventTypeModified.String())
	assert.Equal(t, "deleted", EventTypeDeleted.String())
	assert.Equal(t, "renamed", EventTypeRenamed.String())
	assert.Equal(t, "unknown", EventType(99).String())
}

func TestFilters(t *testing.T) {
	tests := []struct {
		path   string
		html   bool
		noTemp bool
	}{
		{"templates/detail.html", true, true},
		{"templates/detail.html~", false, false},
		{"templates/.#detail.html", true, false},
		{"templates/.detail.html.swp", false, false},
		{"static/styles.css", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.html, HTMLFilter(tt.path))
			assert.Equal(t, tt.noTemp, NoEditorTempFilter(tt.path))
		})
	}
}

func TestDebouncer_DeduplicatesByPath(t *testing.T) {
	d := newDebouncer(10 * time.Millisecond)

	d.addEvent(ChangeEvent{Type: EventTypeCreated, Path: "a.html"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "a.html"})
	d.addEvent(ChangeEvent{Type: EventTypeModified, Path: "b.html"})

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.html", events[0].Path)
		assert.Equal(t, EventTypeModified, events[0].Type, "last event per path wins")
		assert.Equal(t, "b.html", events[1].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never flushed")
	}
}

func TestAddPath_RejectsFiles(t *testing.T) {
	fw, err := NewFileWatcher(10*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.watcher.Close()

	file := filepath.Join(t.TempDir(), "x.html")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	assert.Error(t, fw.AddPath(file))
	assert.Error(t, fw.AddPath(filepath.Join(t.TempDir(), "missing")))
}

func TestFileWatcher_DeliversFilteredChanges(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher(20*time.Millisecond, nil)
	require.NoError(t, err)
	fw.AddFilter(HTMLFilter)
	require.NoError(t, fw.AddPath(dir))

	var mu sync.Mutex
	var seen []ChangeEvent
	fw.AddHandler(func(events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, events...)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "about.html"), []byte("<p>hi</p>"), 0o600))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	for _, ev := range seen {
		assert.Equal(t, "about.html", filepath.Base(ev.Path))
	}
}
