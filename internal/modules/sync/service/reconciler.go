package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	librarydomain "readsync/internal/modules/library/domain"
	libraryout "readsync/internal/modules/library/port/out"
	sessiondomain "readsync/internal/modules/session/domain"
	sessionout "readsync/internal/modules/session/port/out"
	statsdomain "readsync/internal/modules/stats/domain"
	statsin "readsync/internal/modules/stats/port/in"
	"readsync/internal/modules/sync/domain"
	syncout "readsync/internal/modules/sync/port/out"
	"readsync/internal/platform/clock"
	apperrors "readsync/internal/platform/errors"
	"readsync/internal/platform/id"
	"readsync/internal/platform/metrics"
)

const (
	// recentlyEndedTTL is how long an ended session id keeps vetoing late
	// snapshots that would resurrect it.
	recentlyEndedTTL = 24 * time.Hour
	seenEnvelopeTTL  = time.Hour
)

// ApplyResult reports the outcome of one reconciliation.
type ApplyResult struct {
	Kind    domain.Kind
	Applied bool
	Reason  string
}

// Reconciler is the single serialization point for inbound peer facts. Every
// mutation of local state triggered by the peer flows through applyLocked
// under one mutex, so per-kind handlers never observe each other half-done.
type Reconciler struct {
	mu sync.Mutex

	clock          clock.Clock
	idGen          id.Generator
	deviceTag      string
	statsAuthority bool

	books    libraryout.BookStore
	sessions sessionout.SessionStore
	active   sessionout.ActiveSessionStore
	live     sessionout.LiveStatus
	stats    statsin.Engine
	notifier syncout.ChangeListener
	log      zerolog.Logger

	seen          *expirable.LRU[string, struct{}]
	recentlyEnded *expirable.LRU[string, time.Time]
}

func NewReconciler(
	clk clock.Clock,
	idGen id.Generator,
	deviceTag string,
	statsAuthority bool,
	books libraryout.BookStore,
	sessions sessionout.SessionStore,
	active sessionout.ActiveSessionStore,
	live sessionout.LiveStatus,
	stats statsin.Engine,
	notifier syncout.ChangeListener,
	log zerolog.Logger,
) *Reconciler {
	if notifier == nil {
		notifier = syncout.NopListener{}
	}
	return &Reconciler{
		clock:          clk,
		idGen:          idGen,
		deviceTag:      deviceTag,
		statsAuthority: statsAuthority,
		books:          books,
		sessions:       sessions,
		active:         active,
		live:           live,
		stats:          stats,
		notifier:       notifier,
		log:            log.With().Str("component", "reconciler").Logger(),
		seen:           expirable.NewLRU[string, struct{}](2048, nil, seenEnvelopeTTL),
		recentlyEnded:  expirable.NewLRU[string, time.Time](512, nil, recentlyEndedTTL),
	}
}

// Apply reconciles one inbound envelope against local state. Duplicate
// envelopes and rejected payloads return Applied=false with a reason; only
// decode and storage failures surface as errors.
func (r *Reconciler) Apply(ctx context.Context, env domain.Envelope) (ApplyResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.applyLocked(ctx, env)
}

func (r *Reconciler) applyLocked(ctx context.Context, env domain.Envelope) (ApplyResult, error) {
	result := ApplyResult{Kind: env.Kind}
	if err := env.Validate(); err != nil {
		return result, err
	}
	if r.seen.Contains(env.ID) {
		result.Reason = "duplicate envelope"
		metrics.TransfersDropped.WithLabelValues(string(env.Kind), "duplicate").Inc()
		return result, nil
	}

	now := r.clock.Now()
	offset := domain.Offset(now, env.SentAt)
	if domain.SignificantOffset(offset) {
		metrics.SkewCorrections.Inc()
	}

	var err error
	switch env.Kind {
	case domain.KindActiveSession:
		result, err = r.applyActiveSnapshot(ctx, env, offset, now)
	case domain.KindActiveSessionEnd:
		result, err = r.applyActiveEnd(ctx, env, offset)
	case domain.KindSessionCompletion:
		result, err = r.applyCompletion(ctx, env, offset, now)
	case domain.KindSession:
		result, err = r.applySessionRecord(ctx, env, offset, now)
	case domain.KindPageDelta:
		result, err = r.applyPageDelta(ctx, env, offset, now)
	case domain.KindProfileSettings:
		result, err = r.applyProfileSettings(ctx, env)
	case domain.KindProfileStats:
		result, err = r.applyProfileStats(ctx, env)
	case domain.KindAchievement:
		result, err = r.applyAchievement(ctx, env, offset)
	case domain.KindStreakEvent:
		result, err = r.applyStreakEvent(ctx, env, offset)
	}
	if err != nil {
		return result, err
	}

	r.seen.Add(env.ID, struct{}{})
	if result.Applied {
		metrics.TransfersApplied.WithLabelValues(string(env.Kind)).Inc()
		r.afterMutation(ctx, env.Kind)
	} else {
		reason := result.Reason
		if reason == "" {
			reason = "rejected"
		}
		metrics.TransfersDropped.WithLabelValues(string(env.Kind), reason).Inc()
		r.log.Debug().
			Str("kind", string(env.Kind)).
			Str("reason", result.Reason).
			Msg("transfer dropped")
	}
	return result, nil
}

// afterMutation re-derives aggregates for the kinds that can move them and
// pokes the presentation listener.
func (r *Reconciler) afterMutation(ctx context.Context, kind domain.Kind) {
	switch kind {
	case domain.KindSessionCompletion, domain.KindSession,
		domain.KindStreakEvent, domain.KindAchievement, domain.KindProfileSettings:
		if _, err := r.stats.RecomputeAll(ctx); err != nil {
			r.log.Warn().Err(err).Msg("post-apply recompute failed")
		}
	}
	r.notifier.DataChanged()
}

func (r *Reconciler) applyActiveSnapshot(ctx context.Context, env domain.Envelope, offset time.Duration, now time.Time) (ApplyResult, error) {
	result := ApplyResult{Kind: env.Kind}
	var snap domain.ActiveSnapshot
	if err := json.Unmarshal(env.Payload, &snap); err != nil {
		return result, fmt.Errorf("decode active snapshot: %w", err)
	}
	if snap.SessionID == "" || snap.BookID == "" {
		result.Reason = "missing session identity"
		return result, nil
	}
	if r.recentlyEnded.Contains(snap.SessionID) {
		result.Reason = "session already ended"
		return result, nil
	}

	incoming := sessiondomain.ActiveSession{
		ID:          snap.SessionID,
		BookID:      snap.BookID,
		StartedAt:   domain.Shift(snap.StartedAt, offset),
		StartPage:   snap.StartPage,
		CurrentPage: snap.CurrentPage,
		Paused:      snap.Paused,
		PausedAt:    domain.Shift(snap.PausedAt, offset),
		PausedFor:   time.Duration(snap.PausedForSec) * time.Second,
		LastUpdated: domain.Shift(snap.LastUpdated, offset),
		Device:      env.Device,
	}
	if incoming.LastUpdated.IsZero() {
		incoming.LastUpdated = now
	}

	current, err := r.active.LoadActive(ctx)
	hadActive := err == nil
	if err != nil && !isNoActive(err) {
		return result, err
	}

	if hadActive {
		if current.ID == incoming.ID {
			// Stale rejection with the material-change override: an older
			// stamp still applies when it carries a genuine transition AND
			// the stamps sit inside the skew window, because only there can
			// clock drift have misordered them. Outside the window an older
			// stamp is genuinely old, however different its content.
			if incoming.LastUpdated.Before(current.LastUpdated) {
				override := current.MateriallyDiffers(incoming) &&
					domain.WithinTolerance(incoming.LastUpdated, current.LastUpdated)
				if !override {
					result.Reason = "stale update"
					return result, nil
				}
			}
		} else {
			// Two live sessions raced. The later-processed one wins and the
			// displaced one is vetoed from reappearing through late snapshots.
			r.recentlyEnded.Add(current.ID, now)
		}
	}

	if err := r.active.SaveActive(ctx, incoming); err != nil {
		return result, err
	}
	r.updateLive(ctx, incoming, hadActive && current.ID == incoming.ID, now)
	result.Applied = true
	return result, nil
}

func (r *Reconciler) applyActiveEnd(ctx context.Context, env domain.Envelope, offset time.Duration) (ApplyResult, error) {
	result := ApplyResult{Kind: env.Kind}
	var end domain.ActiveEnd
	if err := json.Unmarshal(env.Payload, &end); err != nil {
		return result, fmt.Errorf("decode active end: %w", err)
	}
	now := r.clock.Now()
	if end.SessionID != "" {
		r.recentlyEnded.Add(end.SessionID, now)
	}

	current, err := r.active.LoadActive(ctx)
	if err != nil {
		if isNoActive(err) {
			// Already gone. Ending twice is a no-op, not a failure, but it
			// mutates nothing and must not look like a mutation.
			result.Reason = "no active session"
			return result, nil
		}
		return result, err
	}
	if end.SessionID != "" && end.SessionID != current.ID {
		result.Reason = "ended session not active here"
		return result, nil
	}

	r.recentlyEnded.Add(current.ID, now)
	if err := r.active.ClearActive(ctx); err != nil {
		return result, err
	}
	if err := r.live.End(ctx); err != nil {
		r.log.Warn().Err(err).Msg("live indicator end failed")
	}
	result.Applied = true
	return result, nil
}

func (r *Reconciler) applyCompletion(ctx context.Context, env domain.Envelope, offset time.Duration, now time.Time) (ApplyResult, error) {
	result := ApplyResult{Kind: env.Kind}
	var completion domain.Completion
	if err := json.Unmarshal(env.Payload, &completion); err != nil {
		return result, fmt.Errorf("decode completion: %w", err)
	}
	completion.Record.StartedAt = domain.Shift(completion.Record.StartedAt, offset)
	completion.Record.EndedAt = domain.Shift(completion.Record.EndedAt, offset)
	if err := completion.Validate(now); err != nil {
		// All-or-nothing: a composite with any invalid part is dropped whole.
		result.Reason = err.Error()
		return result, nil
	}

	absorbed, reason, err := r.absorbRecord(ctx, completion.Record, now)
	if err != nil {
		return result, err
	}

	retired := map[string]bool{completion.Record.ID: true}
	if completion.ActiveSessionID != "" {
		retired[completion.ActiveSessionID] = true
	}
	for sid := range retired {
		r.recentlyEnded.Add(sid, now)
	}

	current, err := r.active.LoadActive(ctx)
	if err == nil && retired[current.ID] {
		if err := r.active.ClearActive(ctx); err != nil {
			return result, err
		}
	} else if err != nil && !isNoActive(err) {
		return result, err
	}

	if completion.EndLiveIndicator {
		if err := r.live.End(ctx); err != nil {
			r.log.Warn().Err(err).Msg("live indicator end failed")
		}
	}

	r.advanceBook(ctx, completion.Record.BookID, completion.Record.EndPage, now)
	result.Applied = absorbed
	result.Reason = reason
	return result, nil
}

func (r *Reconciler) applySessionRecord(ctx context.Context, env domain.Envelope, offset time.Duration, now time.Time) (ApplyResult, error) {
	result := ApplyResult{Kind: env.Kind}
	var rec domain.SessionRecord
	if err := json.Unmarshal(env.Payload, &rec); err != nil {
		return result, fmt.Errorf("decode session record: %w", err)
	}
	rec.StartedAt = domain.Shift(rec.StartedAt, offset)
	rec.EndedAt = domain.Shift(rec.EndedAt, offset)

	applied, reason, err := r.absorbRecord(ctx, rec, now)
	if err != nil {
		return result, err
	}
	if applied {
		r.advanceBook(ctx, rec.BookID, rec.EndPage, now)
	}
	result.Applied = applied
	result.Reason = reason
	return result, nil
}

// absorbRecord folds one completed record into the store. Identity duplicates
// merge by id; near-identical records from the race between both devices
// finishing the same session merge by book plus start-time proximity. Either
// way XP is credited as the delta over what the kept record already awarded,
// never the full amount twice.
func (r *Reconciler) absorbRecord(ctx context.Context, rec domain.SessionRecord, now time.Time) (bool, string, error) {
	incoming := recordToSession(rec)
	if err := incoming.Validate(now); err != nil {
		return false, err.Error(), nil
	}

	existing, err := r.sessions.Get(ctx, incoming.ID)
	if err == nil {
		return r.mergeRecords(ctx, existing, incoming)
	}

	peers, err := r.sessions.ListByBook(ctx, incoming.BookID)
	if err != nil {
		return false, "", err
	}
	for _, peer := range peers {
		if domain.WithinTolerance(peer.StartedAt, incoming.StartedAt) &&
			domain.WithinTolerance(peer.EndedAt, incoming.EndedAt) {
			return r.mergeRecords(ctx, peer, incoming)
		}
	}

	incoming.XPAwarded = true
	if err := r.sessions.Upsert(ctx, incoming); err != nil {
		return false, "", err
	}
	if err := r.stats.AwardXP(ctx, incoming.XP); err != nil {
		r.log.Warn().Err(err).Msg("xp award failed")
	}
	return true, "", nil
}

// mergeRecords keeps the stored record's identity and takes the richer value
// per field. The XP credit is only the positive delta.
func (r *Reconciler) mergeRecords(ctx context.Context, existing, incoming sessiondomain.Session) (bool, string, error) {
	merged := existing
	if incoming.EndPage > merged.EndPage {
		merged.EndPage = incoming.EndPage
	}
	if incoming.StartPage < merged.StartPage {
		merged.StartPage = incoming.StartPage
	}
	if incoming.EndedAt.After(merged.EndedAt) {
		merged.EndedAt = incoming.EndedAt
	}
	if incoming.StartedAt.Before(merged.StartedAt) {
		merged.StartedAt = incoming.StartedAt
	}
	if incoming.Duration > merged.Duration {
		merged.Duration = incoming.Duration
	}
	delta := 0
	if incoming.XP > merged.XP {
		delta = incoming.XP - merged.XP
		merged.XP = incoming.XP
	}
	merged.XPAwarded = true

	if err := r.sessions.Upsert(ctx, merged); err != nil {
		return false, "", err
	}
	metrics.DuplicateMerges.Inc()
	if delta > 0 {
		if err := r.stats.AwardXP(ctx, delta); err != nil {
			r.log.Warn().Err(err).Msg("xp delta award failed")
		}
	}
	return true, "merged duplicate", nil
}

func (r *Reconciler) applyPageDelta(ctx context.Context, env domain.Envelope, offset time.Duration, now time.Time) (ApplyResult, error) {
	result := ApplyResult{Kind: env.Kind}
	var delta domain.PageDelta
	if err := json.Unmarshal(env.Payload, &delta); err != nil {
		return result, fmt.Errorf("decode page delta: %w", err)
	}

	current, err := r.active.LoadActive(ctx)
	if err != nil {
		if isNoActive(err) {
			result.Reason = "no active session"
			return result, nil
		}
		return result, err
	}
	if delta.SessionID != "" && delta.SessionID != current.ID {
		result.Reason = "delta targets a different session"
		return result, nil
	}

	if delta.Page > current.CurrentPage {
		current.CurrentPage = delta.Page
	}
	at := domain.Shift(delta.At, offset)
	if at.After(current.LastUpdated) {
		current.LastUpdated = at
	} else {
		current.LastUpdated = now
	}
	if err := r.active.SaveActive(ctx, current); err != nil {
		return result, err
	}
	r.updateLive(ctx, current, true, now)
	r.advanceBook(ctx, current.BookID, current.CurrentPage, now)
	result.Applied = true
	return result, nil
}

func (r *Reconciler) applyProfileSettings(ctx context.Context, env domain.Envelope) (ApplyResult, error) {
	result := ApplyResult{Kind: env.Kind}
	var settings domain.ProfileSettings
	if err := json.Unmarshal(env.Payload, &settings); err != nil {
		return result, fmt.Errorf("decode profile settings: %w", err)
	}
	if err := r.stats.SetPaused(ctx, settings.StreakPaused); err != nil {
		return result, err
	}
	result.Applied = true
	return result, nil
}

func (r *Reconciler) applyProfileStats(ctx context.Context, env domain.Envelope) (ApplyResult, error) {
	result := ApplyResult{Kind: env.Kind}
	if r.statsAuthority {
		// This side derives statistics from source records; the peer's cached
		// projection never overwrites them.
		result.Reason = "statistics owned locally"
		return result, nil
	}
	var stats domain.ProfileStats
	if err := json.Unmarshal(env.Payload, &stats); err != nil {
		return result, fmt.Errorf("decode profile stats: %w", err)
	}
	err := r.stats.CacheProfile(ctx, statsdomain.Profile{
		TotalXP:       stats.TotalXP,
		CurrentStreak: stats.CurrentStreak,
		LongestStreak: stats.LongestStreak,
		LastReadDay:   stats.LastReadDay,
		UpdatedAt:     stats.UpdatedAt,
	})
	if err != nil {
		return result, err
	}
	result.Applied = true
	return result, nil
}

func (r *Reconciler) applyAchievement(ctx context.Context, env domain.Envelope, offset time.Duration) (ApplyResult, error) {
	result := ApplyResult{Kind: env.Kind}
	var note domain.AchievementNote
	if err := json.Unmarshal(env.Payload, &note); err != nil {
		return result, fmt.Errorf("decode achievement: %w", err)
	}
	achievementType := statsdomain.AchievementType(note.Type)
	if err := achievementType.Validate(); err != nil {
		result.Reason = err.Error()
		return result, nil
	}
	err := r.stats.AbsorbAchievement(ctx, statsdomain.Achievement{
		ID:         r.idGen.New(),
		Type:       achievementType,
		UnlockedAt: domain.Shift(note.UnlockedAt, offset),
	})
	if err != nil {
		return result, err
	}
	result.Applied = true
	return result, nil
}

func (r *Reconciler) applyStreakEvent(ctx context.Context, env domain.Envelope, offset time.Duration) (ApplyResult, error) {
	result := ApplyResult{Kind: env.Kind}
	var note domain.StreakEventNote
	if err := json.Unmarshal(env.Payload, &note); err != nil {
		return result, fmt.Errorf("decode streak event: %w", err)
	}
	err := r.stats.AbsorbStreakEvent(ctx, statsdomain.StreakEvent{
		ID:   note.ID,
		Kind: statsdomain.StreakEventKind(note.Kind),
		Day:  note.Day,
		At:   domain.Shift(note.At, offset),
	})
	if err != nil {
		return result, err
	}
	result.Applied = true
	return result, nil
}

// ApplyFullState replaces the cached peer view with a catch-up document.
// Session records still run through the duplicate merge so re-applying the
// same document never double-awards XP.
func (r *Reconciler) ApplyFullState(ctx context.Context, state domain.FullState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	offset := domain.Offset(now, state.PublishedAt)

	for _, rec := range state.Books {
		r.absorbBook(ctx, rec, now)
	}
	for _, rec := range state.Sessions {
		rec.StartedAt = domain.Shift(rec.StartedAt, offset)
		rec.EndedAt = domain.Shift(rec.EndedAt, offset)
		if _, _, err := r.absorbRecord(ctx, rec, now); err != nil {
			return err
		}
	}

	if state.Active != nil {
		env, err := domain.NewEnvelope(r.idGen.New(), domain.KindActiveSession, state.Device, state.PublishedAt, state.Active)
		if err != nil {
			return err
		}
		if _, err := r.applyActiveSnapshot(ctx, env, offset, now); err != nil {
			return err
		}
	} else if current, err := r.active.LoadActive(ctx); err == nil && current.Device == state.Device {
		// The peer no longer has the session it was mirroring to us.
		if err := r.active.ClearActive(ctx); err != nil {
			return err
		}
		if err := r.live.End(ctx); err != nil {
			r.log.Warn().Err(err).Msg("live indicator end failed")
		}
	}

	if state.Settings != nil {
		if err := r.stats.SetPaused(ctx, state.Settings.StreakPaused); err != nil {
			return err
		}
	}
	if state.Stats != nil && !r.statsAuthority {
		err := r.stats.CacheProfile(ctx, statsdomain.Profile{
			TotalXP:       state.Stats.TotalXP,
			CurrentStreak: state.Stats.CurrentStreak,
			LongestStreak: state.Stats.LongestStreak,
			LastReadDay:   state.Stats.LastReadDay,
			UpdatedAt:     state.Stats.UpdatedAt,
		})
		if err != nil {
			return err
		}
	}
	for _, note := range state.Achievements {
		achievementType := statsdomain.AchievementType(note.Type)
		if achievementType.Validate() != nil {
			continue
		}
		err := r.stats.AbsorbAchievement(ctx, statsdomain.Achievement{
			ID:         r.idGen.New(),
			Type:       achievementType,
			UnlockedAt: domain.Shift(note.UnlockedAt, offset),
		})
		if err != nil {
			return err
		}
	}
	for _, note := range state.StreakEvents {
		err := r.stats.AbsorbStreakEvent(ctx, statsdomain.StreakEvent{
			ID:   note.ID,
			Kind: statsdomain.StreakEventKind(note.Kind),
			Day:  note.Day,
			At:   domain.Shift(note.At, offset),
		})
		if err != nil {
			return err
		}
	}

	if _, err := r.stats.RecomputeAll(ctx); err != nil {
		r.log.Warn().Err(err).Msg("post-catchup recompute failed")
	}
	r.notifier.DataChanged()
	return nil
}

// ExportState assembles the outbound catch-up document from local stores.
func (r *Reconciler) ExportState(ctx context.Context) (domain.FullState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := domain.FullState{
		Device:      r.deviceTag,
		PublishedAt: r.clock.Now(),
	}

	books, err := r.books.List(ctx)
	if err != nil {
		return domain.FullState{}, fmt.Errorf("export books: %w", err)
	}
	for _, b := range books {
		state.Books = append(state.Books, domain.BookRecord{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			TotalPages:  b.TotalPages,
			CurrentPage: b.CurrentPage,
			AddedAt:     b.AddedAt,
			UpdatedAt:   b.UpdatedAt,
		})
	}

	sessions, err := r.sessions.List(ctx)
	if err != nil {
		return domain.FullState{}, fmt.Errorf("export sessions: %w", err)
	}
	for _, s := range sessions {
		rec := sessionToRecord(s)
		state.Sessions = append(state.Sessions, rec)
	}

	if current, err := r.active.LoadActive(ctx); err == nil {
		snap := activeToSnapshot(current)
		state.Active = &snap
	} else if !isNoActive(err) {
		return domain.FullState{}, fmt.Errorf("export active session: %w", err)
	}

	profile, achievements, events, err := r.stats.Snapshot(ctx)
	if err != nil {
		return domain.FullState{}, fmt.Errorf("export statistics: %w", err)
	}
	state.Settings = &domain.ProfileSettings{
		StreakPaused: profile.StreakPaused,
		UpdatedAt:    profile.UpdatedAt,
	}
	if r.statsAuthority {
		state.Stats = &domain.ProfileStats{
			TotalXP:       profile.TotalXP,
			CurrentStreak: profile.CurrentStreak,
			LongestStreak: profile.LongestStreak,
			LastReadDay:   profile.LastReadDay,
			UpdatedAt:     profile.UpdatedAt,
		}
	}
	for _, a := range achievements {
		state.Achievements = append(state.Achievements, domain.AchievementNote{
			Type:       string(a.Type),
			UnlockedAt: a.UnlockedAt,
		})
	}
	for _, ev := range events {
		state.StreakEvents = append(state.StreakEvents, domain.StreakEventNote{
			ID:   ev.ID,
			Kind: string(ev.Kind),
			Day:  ev.Day,
			At:   ev.At,
		})
	}
	return state, nil
}

// MarkEnded vetoes future snapshots of a session the local side just retired.
func (r *Reconciler) MarkEnded(sessionID string) {
	if sessionID == "" {
		return
	}
	r.recentlyEnded.Add(sessionID, r.clock.Now())
}

func (r *Reconciler) absorbBook(ctx context.Context, rec domain.BookRecord, now time.Time) {
	existing, err := r.books.Get(ctx, rec.ID)
	if err != nil {
		book := librarydomain.Book{
			ID:          rec.ID,
			Title:       rec.Title,
			Author:      rec.Author,
			TotalPages:  rec.TotalPages,
			CurrentPage: rec.CurrentPage,
			AddedAt:     rec.AddedAt,
			UpdatedAt:   now,
		}
		if book.Validate() != nil {
			return
		}
		if err := r.books.Upsert(ctx, book); err != nil {
			r.log.Warn().Err(err).Str("book_id", rec.ID).Msg("book absorb failed")
		}
		return
	}
	changed := existing.Advance(rec.CurrentPage, now)
	if rec.UpdatedAt.After(existing.UpdatedAt) {
		existing.Title = rec.Title
		existing.Author = rec.Author
		if rec.TotalPages > 0 {
			existing.TotalPages = rec.TotalPages
		}
		existing.UpdatedAt = now
		changed = true
	}
	if changed {
		if err := r.books.Upsert(ctx, existing); err != nil {
			r.log.Warn().Err(err).Str("book_id", rec.ID).Msg("book absorb failed")
		}
	}
}

func (r *Reconciler) advanceBook(ctx context.Context, bookID string, page int, now time.Time) {
	book, err := r.books.Get(ctx, bookID)
	if err != nil {
		return
	}
	if book.Advance(page, now) {
		if err := r.books.Upsert(ctx, book); err != nil {
			r.log.Warn().Err(err).Str("book_id", bookID).Msg("book advance failed")
		}
	}
}

func (r *Reconciler) updateLive(ctx context.Context, session sessiondomain.ActiveSession, existing bool, now time.Time) {
	pages := session.CurrentPage - session.StartPage
	if pages < 0 {
		pages = 0
	}
	xp := statsdomain.SessionXP(pages, session.ReadingDuration(now))
	var err error
	if existing {
		err = r.live.Update(ctx, session.CurrentPage, xp)
	} else {
		err = r.live.Start(ctx, sessionout.LiveIndicator{
			SessionID: session.ID,
			BookID:    session.BookID,
			Page:      session.CurrentPage,
			XP:        xp,
			Paused:    session.Paused,
			StartedAt: session.StartedAt,
		})
	}
	if err != nil {
		r.log.Warn().Err(err).Msg("live indicator update failed")
	}
}

func isNoActive(err error) bool {
	return errors.Is(err, apperrors.ErrNoActiveSession)
}

func recordToSession(rec domain.SessionRecord) sessiondomain.Session {
	duration := time.Duration(rec.DurationSec) * time.Second
	if duration <= 0 {
		duration = rec.EndedAt.Sub(rec.StartedAt)
	}
	return sessiondomain.Session{
		ID:                rec.ID,
		BookID:            rec.BookID,
		StartedAt:         rec.StartedAt,
		EndedAt:           rec.EndedAt,
		StartPage:         rec.StartPage,
		EndPage:           rec.EndPage,
		Duration:          duration,
		XP:                rec.XP,
		AutoGenerated:     rec.AutoGenerated,
		CountsTowardStats: rec.CountsTowardStats,
		Imported:          rec.Imported,
	}
}

func sessionToRecord(s sessiondomain.Session) domain.SessionRecord {
	return domain.SessionRecord{
		ID:                s.ID,
		BookID:            s.BookID,
		StartedAt:         s.StartedAt,
		EndedAt:           s.EndedAt,
		StartPage:         s.StartPage,
		EndPage:           s.EndPage,
		DurationSec:       int64(s.Duration / time.Second),
		XP:                s.XP,
		AutoGenerated:     s.AutoGenerated,
		CountsTowardStats: s.CountsTowardStats,
		Imported:          s.Imported,
	}
}

func activeToSnapshot(a sessiondomain.ActiveSession) domain.ActiveSnapshot {
	return domain.ActiveSnapshot{
		SessionID:    a.ID,
		BookID:       a.BookID,
		StartedAt:    a.StartedAt,
		StartPage:    a.StartPage,
		CurrentPage:  a.CurrentPage,
		Paused:       a.Paused,
		PausedAt:     a.PausedAt,
		PausedForSec: int64(a.PausedFor / time.Second),
		LastUpdated:  a.LastUpdated,
		Device:       a.Device,
	}
}
