package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	sessionout "readsync/internal/modules/session/port/out"
)

// FileLiveStatus persists the platform live indicator as a small JSON file.
// Keeping it on disk lets relaunch detect an indicator that outlived its
// session, or a session that lost its indicator.
type FileLiveStatus struct {
	path string
}

var _ sessionout.LiveStatus = (*FileLiveStatus)(nil)

func NewFileLiveStatus(dataDir string) *FileLiveStatus {
	return &FileLiveStatus{path: filepath.Join(dataDir, "live-indicator.json")}
}

func (s *FileLiveStatus) Start(_ context.Context, indicator sessionout.LiveIndicator) error {
	return s.write(indicator)
}

func (s *FileLiveStatus) Update(ctx context.Context, page, xp int) error {
	current, ok, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	current.Page = page
	current.XP = xp
	return s.write(current)
}

func (s *FileLiveStatus) Pause(ctx context.Context) error {
	return s.setPaused(ctx, true)
}

func (s *FileLiveStatus) Resume(ctx context.Context) error {
	return s.setPaused(ctx, false)
}

func (s *FileLiveStatus) End(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("end live indicator: %w", err)
	}
	return nil
}

func (s *FileLiveStatus) Current(_ context.Context) (sessionout.LiveIndicator, bool, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sessionout.LiveIndicator{}, false, nil
		}
		return sessionout.LiveIndicator{}, false, fmt.Errorf("read live indicator: %w", err)
	}
	var indicator sessionout.LiveIndicator
	if err := json.Unmarshal(payload, &indicator); err != nil {
		return sessionout.LiveIndicator{}, false, fmt.Errorf("decode live indicator: %w", err)
	}
	if indicator.SessionID == "" {
		return sessionout.LiveIndicator{}, false, nil
	}
	return indicator, true, nil
}

func (s *FileLiveStatus) setPaused(ctx context.Context, paused bool) error {
	current, ok, err := s.Current(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	current.Paused = paused
	return s.write(current)
}

func (s *FileLiveStatus) write(indicator sessionout.LiveIndicator) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create live indicator dir: %w", err)
	}
	payload, err := json.MarshalIndent(indicator, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal live indicator: %w", err)
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		return fmt.Errorf("write live indicator: %w", err)
	}
	return nil
}
