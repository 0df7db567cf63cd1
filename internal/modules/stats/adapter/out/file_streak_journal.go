package out

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"readsync/internal/modules/stats/domain"
	statsout "readsync/internal/modules/stats/port/out"
)

// FileStreakJournal is an append-only JSONL journal. RemoveLost rewrites the
// file without the superseded lost entry; everything else only appends.
type FileStreakJournal struct {
	mu   sync.Mutex
	path string
}

func NewFileStreakJournal(dataDir string) *FileStreakJournal {
	return &FileStreakJournal{path: filepath.Join(dataDir, "streak-journal.jsonl")}
}

var _ statsout.StreakJournal = (*FileStreakJournal)(nil)

func (j *FileStreakJournal) Append(_ context.Context, event domain.StreakEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open streak journal: %w", err)
	}
	defer file.Close()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode streak event: %w", err)
	}
	if _, err := file.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write streak journal: %w", err)
	}
	return nil
}

func (j *FileStreakJournal) List(_ context.Context) ([]domain.StreakEvent, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.readAll()
}

func (j *FileStreakJournal) readAll() ([]domain.StreakEvent, error) {
	file, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.StreakEvent{}, nil
		}
		return nil, fmt.Errorf("open streak journal: %w", err)
	}
	defer file.Close()

	events := []domain.StreakEvent{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		event := domain.StreakEvent{}
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan streak journal: %w", err)
	}
	return events, nil
}

func (j *FileStreakJournal) RemoveLost(_ context.Context, day string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	events, err := j.readAll()
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(events))
	changed := false
	for _, event := range events {
		if event.Kind == domain.StreakEventLost && event.Day == day {
			changed = true
			continue
		}
		raw, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode streak event: %w", err)
		}
		kept = append(kept, string(raw))
	}
	if !changed {
		return nil
	}
	content := ""
	if len(kept) > 0 {
		content = strings.Join(kept, "\n") + "\n"
	}
	if err := os.WriteFile(j.path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("rewrite streak journal: %w", err)
	}
	return nil
}
