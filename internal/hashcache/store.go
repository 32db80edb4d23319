package hashcache

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
)

// Load reads a JSON-lines cache file. A missing file yields no entries.
// Lines that do not decode, such as a line torn by a crash mid-append, are
// skipped with a warning. A file that cannot be read at all is moved aside
// and yields no entries, so startup never fails on cache state.
func Load[T any](path string) []Entry[T] {
	entries, err := readEntries[T](path)
	if err == nil {
		return entries
	}
	if os.IsNotExist(err) {
		return nil
	}

	err = apperrors.Wrapf(err, apperrors.CodeCacheCorruption, "load cache %s", path)
	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if renameErr := os.Rename(path, aside); renameErr != nil {
		slog.Warn("cache unreadable, starting empty", "path", path, "error", err, "rename_error", renameErr)
		return nil
	}
	slog.Warn("cache unreadable, starting empty", "path", path, "moved_to", aside, "error", err)
	return nil
}

func readEntries[T any](path string) ([]Entry[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry[T]
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line, skipped := 0, 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry[T]
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			slog.Warn("skipping bad cache line", "path", path, "line", line, "error", err)
			skipped++
			continue
		}
		if len(e.Hash) == 0 {
			slog.Warn("skipping cache line without hash", "path", path, "line", line)
			skipped++
			continue
		}
		e.Index = len(entries)
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if skipped > 0 {
		slog.Info("cache loaded with skipped lines", "path", path, "entries", len(entries), "skipped", skipped)
	}
	return entries, nil
}

// FileStore appends entries to a JSON-lines file.
type FileStore[T any] struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates the parent directory of path if needed.
func NewFileStore[T any](path string) (*FileStore[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileStore[T]{path: path}, nil
}

// Path returns the backing file.
func (s *FileStore[T]) Path() string { return s.path }

// WriteBatch appends entries in order.
func (s *FileStore[T]) WriteBatch(entries []Entry[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Open loads path and returns a cache that persists new entries back to it
// through a Batcher. Non-positive batch settings select defaults. Call
// Batcher.Stop on shutdown.
func Open[T any](path string, threshold, batchSize int, flushDelay time.Duration) (*Cache[T], *Batcher[T], error) {
	store, err := NewFileStore[T](path)
	if err != nil {
		return nil, nil, err
	}
	b := NewBatcher[T](store, batchSize, flushDelay)
	c := New(
		WithThreshold[T](threshold),
		WithEntries(Load[T](path)),
		WithAppender[T](b),
	)
	return c, b, nil
}
