package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"readsync/internal/modules/session/domain"
	sessionout "readsync/internal/modules/session/port/out"
	statsdomain "readsync/internal/modules/stats/domain"
	statsin "readsync/internal/modules/stats/port/in"
	"readsync/internal/platform/clock"
	apperrors "readsync/internal/platform/errors"
	"readsync/internal/platform/id"
)

// SessionService owns the lifecycle of the singular in-progress session.
type SessionService struct {
	clock               clock.Clock
	idGen               id.Generator
	deviceTag           string
	inactivityThreshold time.Duration

	sessions sessionout.SessionStore
	active   sessionout.ActiveSessionStore
	live     sessionout.LiveStatus
	catalog  sessionout.BookCatalog
	stats    statsin.Engine
	log      zerolog.Logger
}

func NewSessionService(
	clk clock.Clock,
	idGen id.Generator,
	deviceTag string,
	inactivityThreshold time.Duration,
	sessions sessionout.SessionStore,
	active sessionout.ActiveSessionStore,
	live sessionout.LiveStatus,
	catalog sessionout.BookCatalog,
	stats statsin.Engine,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		clock:               clk,
		idGen:               idGen,
		deviceTag:           deviceTag,
		inactivityThreshold: inactivityThreshold,
		sessions:            sessions,
		active:              active,
		live:                live,
		catalog:             catalog,
		stats:               stats,
		log:                 log.With().Str("component", "session").Logger(),
	}
}

// Start opens a session on a known book. At most one session may be live.
func (s *SessionService) Start(ctx context.Context, bookID string, page int) (domain.ActiveSession, error) {
	if _, err := s.active.LoadActive(ctx); err == nil {
		return domain.ActiveSession{}, apperrors.ErrActiveSessionExists
	} else if !errors.Is(err, apperrors.ErrNoActiveSession) {
		return domain.ActiveSession{}, err
	}

	book, err := s.catalog.Info(ctx, bookID)
	if err != nil {
		return domain.ActiveSession{}, err
	}
	if page <= 0 {
		page = book.CurrentPage
	}

	now := s.clock.Now()
	session := domain.ActiveSession{
		ID:          s.idGen.New(),
		BookID:      book.ID,
		StartedAt:   now,
		StartPage:   page,
		CurrentPage: page,
		LastUpdated: now,
		Device:      s.deviceTag,
	}
	if err := s.active.SaveActive(ctx, session); err != nil {
		return domain.ActiveSession{}, err
	}
	if err := s.live.Start(ctx, sessionout.LiveIndicator{
		SessionID: session.ID,
		BookID:    session.BookID,
		Page:      session.CurrentPage,
		StartedAt: session.StartedAt,
	}); err != nil {
		s.log.Warn().Err(err).Msg("live indicator start failed")
	}
	s.log.Info().Str("session_id", session.ID).Str("book_id", book.ID).Msg("session started")
	return session, nil
}

// Advance records a page turn. Pages never move backwards, and a turn while
// paused implicitly resumes: turning pages is reading.
func (s *SessionService) Advance(ctx context.Context, page int) (domain.ActiveSession, error) {
	session, err := s.active.LoadActive(ctx)
	if err != nil {
		return domain.ActiveSession{}, err
	}
	now := s.clock.Now()
	if session.Paused {
		session = resume(session, now)
	}
	if page > session.CurrentPage {
		session.CurrentPage = page
	}
	session.LastUpdated = now
	if err := s.active.SaveActive(ctx, session); err != nil {
		return domain.ActiveSession{}, err
	}
	if err := s.live.Update(ctx, session.CurrentPage, s.liveXP(session, now)); err != nil {
		s.log.Warn().Err(err).Msg("live indicator update failed")
	}
	if err := s.catalog.Advance(ctx, session.BookID, session.CurrentPage); err != nil {
		s.log.Warn().Err(err).Str("book_id", session.BookID).Msg("book progress update failed")
	}
	return session, nil
}

// Pause is idempotent: pausing a paused session changes nothing.
func (s *SessionService) Pause(ctx context.Context) (domain.ActiveSession, error) {
	session, err := s.active.LoadActive(ctx)
	if err != nil {
		return domain.ActiveSession{}, err
	}
	if session.Paused {
		return session, nil
	}
	now := s.clock.Now()
	session.Paused = true
	session.PausedAt = now
	session.LastUpdated = now
	if err := s.active.SaveActive(ctx, session); err != nil {
		return domain.ActiveSession{}, err
	}
	if err := s.live.Pause(ctx); err != nil {
		s.log.Warn().Err(err).Msg("live indicator pause failed")
	}
	return session, nil
}

func (s *SessionService) Resume(ctx context.Context) (domain.ActiveSession, error) {
	session, err := s.active.LoadActive(ctx)
	if err != nil {
		return domain.ActiveSession{}, err
	}
	if !session.Paused {
		return session, nil
	}
	now := s.clock.Now()
	session = resume(session, now)
	session.LastUpdated = now
	if err := s.active.SaveActive(ctx, session); err != nil {
		return domain.ActiveSession{}, err
	}
	if err := s.live.Resume(ctx); err != nil {
		s.log.Warn().Err(err).Msg("live indicator resume failed")
	}
	return session, nil
}

// Finish closes the live session into a completed record and credits it.
func (s *SessionService) Finish(ctx context.Context) (domain.ActiveSession, domain.Session, error) {
	session, err := s.active.LoadActive(ctx)
	if err != nil {
		return domain.ActiveSession{}, domain.Session{}, err
	}
	now := s.clock.Now()
	record := s.buildRecord(session, now, false)
	if err := record.Validate(now); err != nil {
		return domain.ActiveSession{}, domain.Session{}, fmt.Errorf("finish session: %w", err)
	}
	if err := s.finalizeEnd(ctx, record); err != nil {
		return domain.ActiveSession{}, domain.Session{}, err
	}
	s.log.Info().
		Str("session_id", record.ID).
		Int("pages", record.PagesRead()).
		Int("xp", record.XP).
		Msg("session finished")
	return session, record, nil
}

// Abandon discards the live session without a record.
func (s *SessionService) Abandon(ctx context.Context) (domain.ActiveSession, error) {
	session, err := s.active.LoadActive(ctx)
	if err != nil {
		return domain.ActiveSession{}, err
	}
	if err := s.active.ClearActive(ctx); err != nil {
		return domain.ActiveSession{}, err
	}
	if err := s.live.End(ctx); err != nil {
		s.log.Warn().Err(err).Msg("live indicator end failed")
	}
	return session, nil
}

func (s *SessionService) Active(ctx context.Context) (domain.ActiveSession, sessionout.BookInfo, error) {
	session, err := s.active.LoadActive(ctx)
	if err != nil {
		return domain.ActiveSession{}, sessionout.BookInfo{}, err
	}
	book, err := s.catalog.Info(ctx, session.BookID)
	if err != nil && !errors.Is(err, apperrors.ErrBookNotFound) {
		return domain.ActiveSession{}, sessionout.BookInfo{}, err
	}
	return session, book, nil
}

// StaleActive reports the live session if it idled past the threshold.
func (s *SessionService) StaleActive(ctx context.Context) (domain.ActiveSession, bool, error) {
	session, err := s.active.LoadActive(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoActiveSession) {
			return domain.ActiveSession{}, false, nil
		}
		return domain.ActiveSession{}, false, err
	}
	return session, session.ShouldAutoEnd(s.clock.Now(), s.inactivityThreshold), nil
}

// AutoEndRecord builds the record for a staleness-retired session. The end
// stamp is the last observed activity, not cleanup time: the idle tail was
// not reading.
func (s *SessionService) AutoEndRecord(session domain.ActiveSession) domain.Session {
	return s.buildRecord(session, session.LastUpdated, true)
}

// FinalizeEnd persists an end decided elsewhere (staleness cleanup, after the
// peer was notified).
func (s *SessionService) FinalizeEnd(ctx context.Context, record domain.Session) error {
	if err := s.finalizeEnd(ctx, record); err != nil {
		return err
	}
	s.log.Info().Str("session_id", record.ID).Msg("stale session auto-ended")
	return nil
}

// RepairIndicator reconciles the persisted live indicator with the active
// session after a relaunch: a torn indicator comes down, a missing one is
// restored.
func (s *SessionService) RepairIndicator(ctx context.Context) (torn, restored bool, err error) {
	indicator, hasIndicator, err := s.live.Current(ctx)
	if err != nil {
		return false, false, err
	}
	session, err := s.active.LoadActive(ctx)
	hasActive := err == nil
	if err != nil && !errors.Is(err, apperrors.ErrNoActiveSession) {
		return false, false, err
	}

	switch {
	case hasIndicator && !hasActive:
		if err := s.live.End(ctx); err != nil {
			return false, false, err
		}
		return true, false, nil
	case hasIndicator && indicator.SessionID != session.ID:
		if err := s.live.End(ctx); err != nil {
			return false, false, err
		}
		fallthrough
	case !hasIndicator && hasActive:
		now := s.clock.Now()
		err := s.live.Start(ctx, sessionout.LiveIndicator{
			SessionID: session.ID,
			BookID:    session.BookID,
			Page:      session.CurrentPage,
			XP:        s.liveXP(session, now),
			Paused:    session.Paused,
			StartedAt: session.StartedAt,
		})
		if err != nil {
			return torn, false, err
		}
		return torn, true, nil
	}
	return false, false, nil
}

func (s *SessionService) finalizeEnd(ctx context.Context, record domain.Session) error {
	record.XPAwarded = true
	if err := s.sessions.Upsert(ctx, record); err != nil {
		return err
	}
	if err := s.active.ClearActive(ctx); err != nil {
		return err
	}
	if err := s.live.End(ctx); err != nil {
		s.log.Warn().Err(err).Msg("live indicator end failed")
	}
	if record.CountsTowardStats {
		if err := s.stats.AwardXP(ctx, record.XP); err != nil {
			s.log.Warn().Err(err).Msg("xp award failed")
		}
		s.stats.MarkReadingDay(ctx, statsdomain.DayOf(record.EndedAt))
		if _, err := s.stats.RecomputeAll(ctx); err != nil {
			s.log.Warn().Err(err).Msg("post-finish recompute failed")
		}
	}
	if err := s.catalog.Advance(ctx, record.BookID, record.EndPage); err != nil {
		s.log.Warn().Err(err).Str("book_id", record.BookID).Msg("book progress update failed")
	}
	return nil
}

func (s *SessionService) buildRecord(session domain.ActiveSession, endedAt time.Time, auto bool) domain.Session {
	if session.Paused && !session.PausedAt.IsZero() && endedAt.After(session.PausedAt) {
		session.PausedFor += endedAt.Sub(session.PausedAt)
		session.Paused = false
	}
	duration := endedAt.Sub(session.StartedAt) - session.PausedFor
	if duration < 0 {
		duration = 0
	}
	pages := session.CurrentPage - session.StartPage
	if pages < 0 {
		pages = 0
	}
	return domain.Session{
		ID:                session.ID,
		BookID:            session.BookID,
		StartedAt:         session.StartedAt,
		EndedAt:           endedAt,
		StartPage:         session.StartPage,
		EndPage:           session.CurrentPage,
		Duration:          duration,
		XP:                statsdomain.SessionXP(pages, duration),
		AutoGenerated:     auto,
		CountsTowardStats: true,
	}
}

func (s *SessionService) liveXP(session domain.ActiveSession, now time.Time) int {
	pages := session.CurrentPage - session.StartPage
	if pages < 0 {
		pages = 0
	}
	return statsdomain.SessionXP(pages, session.ReadingDuration(now))
}

func resume(session domain.ActiveSession, now time.Time) domain.ActiveSession {
	if !session.PausedAt.IsZero() && now.After(session.PausedAt) {
		session.PausedFor += now.Sub(session.PausedAt)
	}
	session.Paused = false
	session.PausedAt = time.Time{}
	return session
}
