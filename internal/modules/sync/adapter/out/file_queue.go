package out

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"readsync/internal/modules/sync/domain"
	syncout "readsync/internal/modules/sync/port/out"
)

const queueFileName = "pending_transfers.jsonl"

// FileQueue is the durable store-and-forward buffer, one JSON envelope per
// line. Remove rewrites the file without the dropped entry.
type FileQueue struct {
	mu   sync.Mutex
	path string
}

var _ syncout.PendingQueue = (*FileQueue)(nil)

func NewFileQueue(dir string) (*FileQueue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}
	return &FileQueue{path: filepath.Join(dir, queueFileName)}, nil
}

func (q *FileQueue) Enqueue(ctx context.Context, env domain.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	line, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode pending transfer: %w", err)
	}
	f, err := os.OpenFile(q.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open pending queue: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append pending transfer: %w", err)
	}
	return f.Sync()
}

func (q *FileQueue) List(ctx context.Context) ([]domain.Envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.readAll()
}

func (q *FileQueue) Remove(ctx context.Context, envelopeID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.readAll()
	if err != nil {
		return err
	}
	kept := pending[:0]
	for _, env := range pending {
		if env.ID != envelopeID {
			kept = append(kept, env)
		}
	}
	return q.rewrite(kept)
}

func (q *FileQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending, err := q.readAll()
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

func (q *FileQueue) readAll() ([]domain.Envelope, error) {
	f, err := os.Open(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open pending queue: %w", err)
	}
	defer f.Close()

	var pending []domain.Envelope
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var env domain.Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			// A torn tail write from a crash is skipped, not fatal.
			continue
		}
		pending = append(pending, env)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan pending queue: %w", err)
	}
	return pending, nil
}

func (q *FileQueue) rewrite(pending []domain.Envelope) error {
	tmp := q.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open queue tempfile: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, env := range pending {
		line, err := json.Marshal(env)
		if err != nil {
			f.Close()
			return fmt.Errorf("encode pending transfer: %w", err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			f.Close()
			return fmt.Errorf("write queue tempfile: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, q.path)
}
