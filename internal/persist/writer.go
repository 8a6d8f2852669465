package persist

import (
	"log/slog"
	"sync"
)

// Writer runs fire-and-forget snapshot writes. At most one write per key is
// in flight at a time; a newer write for the same key supersedes anything
// still queued behind it. Failures are logged and reported through onError,
// never returned to the interactive caller.
type Writer struct {
	kv      KV
	logger  *slog.Logger
	onError func(key string, err error)

	mu       sync.Mutex
	inflight map[string]bool
	pending  map[string][]byte
	wg       sync.WaitGroup
	closed   bool
}

// NewWriter creates a writer over kv. onError may be nil.
func NewWriter(kv KV, logger *slog.Logger, onError func(key string, err error)) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{
		kv:       kv,
		logger:   logger,
		onError:  onError,
		inflight: map[string]bool{},
		pending:  map[string][]byte{},
	}
}

// Write queues value for key and returns immediately.
func (w *Writer) Write(key string, value []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.inflight[key] {
		// Replace whatever was queued; only the newest snapshot matters.
		w.pending[key] = value
		return
	}
	w.inflight[key] = true
	w.wg.Add(1)
	go w.run(key, value)
}

func (w *Writer) run(key string, value []byte) {
	defer w.wg.Done()
	for {
		if err := w.kv.Put(key, value); err != nil {
			w.logger.Error("snapshot write failed", "key", key, "error", err)
			if w.onError != nil {
				w.onError(key, err)
			}
		}

		w.mu.Lock()
		next, ok := w.pending[key]
		if !ok {
			delete(w.inflight, key)
			w.mu.Unlock()
			return
		}
		delete(w.pending, key)
		w.mu.Unlock()
		value = next
	}
}

// Close drains in-flight and queued writes. Writes issued after Close are
// dropped.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wg.Wait()
}
