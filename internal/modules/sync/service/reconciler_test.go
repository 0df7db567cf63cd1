package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	librarydomain "readsync/internal/modules/library/domain"
	sessiondomain "readsync/internal/modules/session/domain"
	sessionout "readsync/internal/modules/session/port/out"
	statsdomain "readsync/internal/modules/stats/domain"
	"readsync/internal/modules/sync/domain"
	"readsync/internal/modules/sync/service"
	apperrors "readsync/internal/platform/errors"
	"readsync/internal/platform/logging"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type seqIDs struct{ n int }

func (s *seqIDs) New() string {
	s.n++
	return fmt.Sprintf("id-%d", s.n)
}

type memBooks struct {
	books map[string]librarydomain.Book
}

func newMemBooks() *memBooks { return &memBooks{books: map[string]librarydomain.Book{}} }

func (m *memBooks) Upsert(_ context.Context, book librarydomain.Book) error {
	m.books[book.ID] = book
	return nil
}

func (m *memBooks) Get(_ context.Context, bookID string) (librarydomain.Book, error) {
	book, ok := m.books[bookID]
	if !ok {
		return librarydomain.Book{}, apperrors.ErrBookNotFound
	}
	return book, nil
}

func (m *memBooks) List(_ context.Context) ([]librarydomain.Book, error) {
	out := []librarydomain.Book{}
	for _, b := range m.books {
		out = append(out, b)
	}
	return out, nil
}

func (m *memBooks) Delete(_ context.Context, bookID string) error {
	delete(m.books, bookID)
	return nil
}

type memSessions struct {
	sessions map[string]sessiondomain.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]sessiondomain.Session{}}
}

func (m *memSessions) Upsert(_ context.Context, session sessiondomain.Session) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *memSessions) Get(_ context.Context, sessionID string) (sessiondomain.Session, error) {
	session, ok := m.sessions[sessionID]
	if !ok {
		return sessiondomain.Session{}, apperrors.ErrNotFound
	}
	return session, nil
}

func (m *memSessions) List(_ context.Context) ([]sessiondomain.Session, error) {
	out := []sessiondomain.Session{}
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *memSessions) ListByBook(_ context.Context, bookID string) ([]sessiondomain.Session, error) {
	out := []sessiondomain.Session{}
	for _, s := range m.sessions {
		if s.BookID == bookID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessions) Delete(_ context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	return nil
}

type memActive struct {
	session *sessiondomain.ActiveSession
}

func (m *memActive) SaveActive(_ context.Context, session sessiondomain.ActiveSession) error {
	m.session = &session
	return nil
}

func (m *memActive) LoadActive(_ context.Context) (sessiondomain.ActiveSession, error) {
	if m.session == nil {
		return sessiondomain.ActiveSession{}, apperrors.ErrNoActiveSession
	}
	return *m.session, nil
}

func (m *memActive) ClearActive(_ context.Context) error {
	m.session = nil
	return nil
}

type memLive struct {
	indicator sessionout.LiveIndicator
	active    bool
	ends      int
}

func (m *memLive) Start(_ context.Context, indicator sessionout.LiveIndicator) error {
	m.indicator = indicator
	m.active = true
	return nil
}

func (m *memLive) Update(_ context.Context, page, xp int) error {
	m.indicator.Page = page
	m.indicator.XP = xp
	return nil
}

func (m *memLive) Pause(_ context.Context) error {
	m.indicator.Paused = true
	return nil
}

func (m *memLive) Resume(_ context.Context) error {
	m.indicator.Paused = false
	return nil
}

func (m *memLive) End(_ context.Context) error {
	m.active = false
	m.ends++
	return nil
}

func (m *memLive) Current(_ context.Context) (sessionout.LiveIndicator, bool, error) {
	return m.indicator, m.active, nil
}

type fakeStats struct {
	awarded    int
	recomputes int
	paused     bool
	cached     *statsdomain.Profile
	absorbed   []statsdomain.Achievement
	events     []statsdomain.StreakEvent
	days       []string
}

func (f *fakeStats) AwardXP(_ context.Context, delta int) error {
	f.awarded += delta
	return nil
}

func (f *fakeStats) RecomputeAll(_ context.Context) (statsdomain.Profile, error) {
	f.recomputes++
	return statsdomain.Profile{TotalXP: f.awarded}, nil
}

func (f *fakeStats) AbsorbAchievement(_ context.Context, achievement statsdomain.Achievement) error {
	f.absorbed = append(f.absorbed, achievement)
	return nil
}

func (f *fakeStats) AbsorbStreakEvent(_ context.Context, event statsdomain.StreakEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStats) CacheProfile(_ context.Context, profile statsdomain.Profile) error {
	f.cached = &profile
	return nil
}

func (f *fakeStats) SetPaused(_ context.Context, paused bool) error {
	f.paused = paused
	return nil
}

func (f *fakeStats) MarkReadingDay(_ context.Context, day string) {
	f.days = append(f.days, day)
}

func (f *fakeStats) Snapshot(_ context.Context) (statsdomain.Profile, []statsdomain.Achievement, []statsdomain.StreakEvent, error) {
	return statsdomain.Profile{TotalXP: f.awarded}, f.absorbed, f.events, nil
}

type harness struct {
	clock    *fakeClock
	books    *memBooks
	sessions *memSessions
	active   *memActive
	live     *memLive
	stats    *fakeStats
	rec      *service.Reconciler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		books:    newMemBooks(),
		sessions: newMemSessions(),
		active:   &memActive{},
		live:     &memLive{},
		stats:    &fakeStats{},
	}
	h.books.books["b1"] = librarydomain.Book{ID: "b1", Title: "Dune", TotalPages: 500, CurrentPage: 10}
	h.rec = service.NewReconciler(
		h.clock, &seqIDs{}, "phone", true,
		h.books, h.sessions, h.active, h.live,
		h.stats, nil, logging.Nop(),
	)
	return h
}

func envelope(t *testing.T, id string, kind domain.Kind, sentAt time.Time, payload any) domain.Envelope {
	t.Helper()
	env, err := domain.NewEnvelope(id, kind, "wrist", sentAt, payload)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	return env
}

func completionEnvelope(t *testing.T, envID, sessionID string, sentAt, startedAt, endedAt time.Time, xp int) domain.Envelope {
	t.Helper()
	return envelope(t, envID, domain.KindSessionCompletion, sentAt, domain.Completion{
		ActiveSessionID: sessionID,
		Record: domain.SessionRecord{
			ID:                sessionID,
			BookID:            "b1",
			StartedAt:         startedAt,
			EndedAt:           endedAt,
			StartPage:         10,
			EndPage:           40,
			DurationSec:       int64(endedAt.Sub(startedAt) / time.Second),
			XP:                xp,
			CountsTowardStats: true,
		},
		EndLiveIndicator: true,
	})
}

func TestApplyCompletionIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	env := completionEnvelope(t, "e1", "s1", now, now.Add(-time.Hour), now.Add(-time.Minute), 300)

	first, err := h.rec.Apply(context.Background(), env)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if !first.Applied {
		t.Fatalf("expected first apply to land, reason=%q", first.Reason)
	}
	if h.stats.awarded != 300 {
		t.Fatalf("expected 300 xp awarded, got %d", h.stats.awarded)
	}

	second, err := h.rec.Apply(context.Background(), env)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second.Applied {
		t.Fatal("expected duplicate envelope to be dropped")
	}
	if h.stats.awarded != 300 {
		t.Fatalf("duplicate changed xp: %d", h.stats.awarded)
	}
	if len(h.sessions.sessions) != 1 {
		t.Fatalf("expected one record, got %d", len(h.sessions.sessions))
	}
}

func TestApplyCompletionSameRecordNewEnvelopeMerges(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	start, end := now.Add(-time.Hour), now.Add(-time.Minute)

	if _, err := h.rec.Apply(context.Background(), completionEnvelope(t, "e1", "s1", now, start, end, 300)); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	result, err := h.rec.Apply(context.Background(), completionEnvelope(t, "e2", "s1", now, start, end, 300))
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !result.Applied || result.Reason != "merged duplicate" {
		t.Fatalf("expected merge, got applied=%t reason=%q", result.Applied, result.Reason)
	}
	if h.stats.awarded != 300 {
		t.Fatalf("merge double-awarded xp: %d", h.stats.awarded)
	}
	if len(h.sessions.sessions) != 1 {
		t.Fatalf("expected one record, got %d", len(h.sessions.sessions))
	}
}

func TestHeuristicMergeAwardsOnlyDelta(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	start := now.Add(-time.Hour)

	if _, err := h.rec.Apply(context.Background(), completionEnvelope(t, "e1", "s1", now, start, now.Add(-10*time.Minute), 100)); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// Same reading act captured independently: different id, start and end
	// both within the proximity window, slightly richer totals.
	richer := completionEnvelope(t, "e2", "s2", now, start.Add(2*time.Minute), now.Add(-7*time.Minute), 120)
	result, err := h.rec.Apply(context.Background(), richer)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !result.Applied {
		t.Fatalf("expected merge to apply, reason=%q", result.Reason)
	}
	if len(h.sessions.sessions) != 1 {
		t.Fatalf("expected records merged into one, got %d", len(h.sessions.sessions))
	}
	if h.stats.awarded != 120 {
		t.Fatalf("expected total xp 120 (100 + delta 20), got %d", h.stats.awarded)
	}
	if _, ok := h.sessions.sessions["s1"]; !ok {
		t.Fatal("expected the stored record to keep its original identity")
	}

	// A short and a long session can share a start window without being the
	// same act. The far-apart end keeps them distinct, with full credit.
	distinct := completionEnvelope(t, "e3", "s3", now, start.Add(time.Minute), start.Add(10*time.Minute), 80)
	result, err = h.rec.Apply(context.Background(), distinct)
	if err != nil {
		t.Fatalf("third apply: %v", err)
	}
	if !result.Applied || result.Reason == "merged duplicate" {
		t.Fatalf("expected a distinct record, got applied=%t reason=%q", result.Applied, result.Reason)
	}
	if len(h.sessions.sessions) != 2 {
		t.Fatalf("expected two records, got %d", len(h.sessions.sessions))
	}
	if h.stats.awarded != 200 {
		t.Fatalf("expected total xp 200 (120 + 80), got %d", h.stats.awarded)
	}
}

func TestActiveSnapshotStaleRejectedUnlessMaterial(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	h.active.session = &sessiondomain.ActiveSession{
		ID: "a1", BookID: "b1", StartedAt: now.Add(-30 * time.Minute),
		StartPage: 10, CurrentPage: 20, LastUpdated: now.Add(-time.Minute), Device: "wrist",
	}

	stale := envelope(t, "e1", domain.KindActiveSession, now, domain.ActiveSnapshot{
		SessionID: "a1", BookID: "b1", StartedAt: now.Add(-30 * time.Minute),
		StartPage: 10, CurrentPage: 20, LastUpdated: now.Add(-2 * time.Minute), Device: "wrist",
	})
	result, err := h.rec.Apply(context.Background(), stale)
	if err != nil {
		t.Fatalf("apply stale: %v", err)
	}
	if result.Applied {
		t.Fatal("expected stale snapshot to be rejected")
	}

	// An older stamp carrying a real transition (pause toggled) still lands.
	material := envelope(t, "e2", domain.KindActiveSession, now, domain.ActiveSnapshot{
		SessionID: "a1", BookID: "b1", StartedAt: now.Add(-30 * time.Minute),
		StartPage: 10, CurrentPage: 20, Paused: true, LastUpdated: now.Add(-2 * time.Minute), Device: "wrist",
	})
	result, err = h.rec.Apply(context.Background(), material)
	if err != nil {
		t.Fatalf("apply material: %v", err)
	}
	if !result.Applied {
		t.Fatalf("expected material change to override staleness, reason=%q", result.Reason)
	}
	if !h.active.session.Paused {
		t.Fatal("expected pause state applied")
	}

	// The override is bounded by the skew window. A snapshot stamped hours
	// behind is genuinely old, however different its content, and must not
	// regress the page.
	h.active.session.LastUpdated = now.Add(-time.Minute)
	ancient := envelope(t, "e3", domain.KindActiveSession, now, domain.ActiveSnapshot{
		SessionID: "a1", BookID: "b1", StartedAt: now.Add(-30 * time.Minute),
		StartPage: 10, CurrentPage: 12, LastUpdated: now.Add(-2 * time.Hour), Device: "wrist",
	})
	result, err = h.rec.Apply(context.Background(), ancient)
	if err != nil {
		t.Fatalf("apply ancient: %v", err)
	}
	if result.Applied {
		t.Fatal("expected out-of-tolerance stale snapshot to be rejected")
	}
	if h.active.session.CurrentPage != 20 {
		t.Fatalf("expected page to stay at 20, got %d", h.active.session.CurrentPage)
	}
}

func TestSingleActiveLaterProcessedWins(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	h.active.session = &sessiondomain.ActiveSession{
		ID: "a1", BookID: "b1", StartedAt: now.Add(-time.Second),
		CurrentPage: 15, LastUpdated: now.Add(-time.Second), Device: "phone",
	}

	// Two near-simultaneous starts raced. The incoming one started earlier,
	// yet it is the later-processed message and must replace the current one.
	incoming := envelope(t, "e1", domain.KindActiveSession, now, domain.ActiveSnapshot{
		SessionID: "a2", BookID: "b1", StartedAt: now.Add(-2 * time.Second),
		CurrentPage: 12, LastUpdated: now, Device: "wrist",
	})
	result, err := h.rec.Apply(context.Background(), incoming)
	if err != nil {
		t.Fatalf("apply incoming: %v", err)
	}
	if !result.Applied {
		t.Fatalf("expected later-processed session to win, reason=%q", result.Reason)
	}
	if h.active.session.ID != "a2" {
		t.Fatalf("expected a2 active, got %s", h.active.session.ID)
	}

	// The displaced session may not resurrect through a late snapshot.
	late := envelope(t, "e2", domain.KindActiveSession, now, domain.ActiveSnapshot{
		SessionID: "a1", BookID: "b1", StartedAt: now.Add(-time.Second),
		CurrentPage: 16, LastUpdated: now.Add(time.Second), Device: "phone",
	})
	result, err = h.rec.Apply(context.Background(), late)
	if err != nil {
		t.Fatalf("apply late: %v", err)
	}
	if result.Applied {
		t.Fatal("expected displaced session snapshot to be vetoed")
	}
	if h.active.session.ID != "a2" {
		t.Fatalf("expected a2 to stay active, got %s", h.active.session.ID)
	}
}

func TestEndedSessionSnapshotVetoed(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	h.active.session = &sessiondomain.ActiveSession{
		ID: "a1", BookID: "b1", StartedAt: now.Add(-time.Hour), LastUpdated: now, Device: "wrist",
	}

	end := envelope(t, "e1", domain.KindActiveSessionEnd, now, domain.ActiveEnd{SessionID: "a1", At: now})
	if _, err := h.rec.Apply(context.Background(), end); err != nil {
		t.Fatalf("apply end: %v", err)
	}
	if h.active.session != nil {
		t.Fatal("expected active cleared")
	}

	// A snapshot delayed in transit arrives after the end.
	late := envelope(t, "e2", domain.KindActiveSession, now, domain.ActiveSnapshot{
		SessionID: "a1", BookID: "b1", StartedAt: now.Add(-time.Hour),
		CurrentPage: 30, LastUpdated: now.Add(-time.Second), Device: "wrist",
	})
	result, err := h.rec.Apply(context.Background(), late)
	if err != nil {
		t.Fatalf("apply late snapshot: %v", err)
	}
	if result.Applied {
		t.Fatal("expected ended session to stay ended")
	}
	if h.active.session != nil {
		t.Fatal("expected no session resurrected")
	}
}

func TestActiveEndWithoutMatchingSessionNotApplied(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	h.active.session = &sessiondomain.ActiveSession{
		ID: "a1", BookID: "b1", StartedAt: now.Add(-time.Hour), LastUpdated: now, Device: "phone",
	}

	// An end for a session not active here mutates nothing.
	foreign := envelope(t, "e1", domain.KindActiveSessionEnd, now, domain.ActiveEnd{SessionID: "a2", At: now})
	result, err := h.rec.Apply(context.Background(), foreign)
	if err != nil {
		t.Fatalf("apply foreign end: %v", err)
	}
	if result.Applied {
		t.Fatal("expected foreign end to be reported as not applied")
	}
	if result.Reason != "ended session not active here" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
	if h.active.session == nil || h.active.session.ID != "a1" {
		t.Fatal("expected local session untouched")
	}

	// Ending twice is quiet on the second pass.
	matching := envelope(t, "e2", domain.KindActiveSessionEnd, now, domain.ActiveEnd{SessionID: "a1", At: now})
	if _, err := h.rec.Apply(context.Background(), matching); err != nil {
		t.Fatalf("apply matching end: %v", err)
	}
	repeat := envelope(t, "e3", domain.KindActiveSessionEnd, now, domain.ActiveEnd{SessionID: "a1", At: now})
	result, err = h.rec.Apply(context.Background(), repeat)
	if err != nil {
		t.Fatalf("apply repeat end: %v", err)
	}
	if result.Applied || result.Reason != "no active session" {
		t.Fatalf("expected quiet no-op, got applied=%t reason=%q", result.Applied, result.Reason)
	}
}

func TestSkewCorrectionShiftsTimestamps(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	// Peer clock runs 3 minutes behind: sentAt is 3 minutes in our past.
	sentAt := now.Add(-3 * time.Minute)
	env := completionEnvelope(t, "e1", "s1", sentAt, sentAt.Add(-time.Hour), sentAt, 100)

	if _, err := h.rec.Apply(context.Background(), env); err != nil {
		t.Fatalf("apply: %v", err)
	}
	stored := h.sessions.sessions["s1"]
	if !stored.EndedAt.Equal(now) {
		t.Fatalf("expected end shifted to %v, got %v", now, stored.EndedAt)
	}
}

func TestSkewOutsideToleranceNotCorrected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	sentAt := now.Add(-10 * time.Minute)
	endedAt := sentAt.Add(-time.Minute)
	env := completionEnvelope(t, "e1", "s1", sentAt, endedAt.Add(-time.Hour), endedAt, 100)

	if _, err := h.rec.Apply(context.Background(), env); err != nil {
		t.Fatalf("apply: %v", err)
	}
	stored := h.sessions.sessions["s1"]
	if !stored.EndedAt.Equal(endedAt) {
		t.Fatalf("expected timestamps untouched, got %v", stored.EndedAt)
	}
}

func TestCompletionInvalidDroppedWhole(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	h.active.session = &sessiondomain.ActiveSession{ID: "s1", BookID: "b1", StartedAt: now.Add(-time.Hour), LastUpdated: now}

	broken := completionEnvelope(t, "e1", "s1", now, now, now.Add(-time.Hour), 100)
	result, err := h.rec.Apply(context.Background(), broken)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Applied {
		t.Fatal("expected invalid completion dropped")
	}
	if len(h.sessions.sessions) != 0 {
		t.Fatal("expected no record stored")
	}
	if h.active.session == nil {
		t.Fatal("expected active session untouched")
	}
	if h.stats.awarded != 0 {
		t.Fatalf("expected no xp, got %d", h.stats.awarded)
	}
}

func TestCompletionRetiresActiveAndAdvancesBook(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	h.active.session = &sessiondomain.ActiveSession{ID: "s1", BookID: "b1", StartedAt: now.Add(-time.Hour), LastUpdated: now}
	h.live.active = true

	env := completionEnvelope(t, "e1", "s1", now, now.Add(-time.Hour), now.Add(-time.Minute), 300)
	if _, err := h.rec.Apply(context.Background(), env); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if h.active.session != nil {
		t.Fatal("expected active retired")
	}
	if h.live.active {
		t.Fatal("expected live indicator ended")
	}
	if h.books.books["b1"].CurrentPage != 40 {
		t.Fatalf("expected book advanced to 40, got %d", h.books.books["b1"].CurrentPage)
	}
	if h.stats.recomputes == 0 {
		t.Fatal("expected aggregates recomputed after mutation")
	}
}

func TestPageDeltaOnlyMatchingSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	h.active.session = &sessiondomain.ActiveSession{
		ID: "a1", BookID: "b1", StartPage: 10, CurrentPage: 15, StartedAt: now.Add(-time.Hour), LastUpdated: now.Add(-time.Minute),
	}

	wrong := envelope(t, "e1", domain.KindPageDelta, now, domain.PageDelta{SessionID: "other", Page: 99, At: now})
	result, err := h.rec.Apply(context.Background(), wrong)
	if err != nil {
		t.Fatalf("apply wrong: %v", err)
	}
	if result.Applied {
		t.Fatal("expected delta for a different session to be dropped")
	}

	right := envelope(t, "e2", domain.KindPageDelta, now, domain.PageDelta{SessionID: "a1", Page: 25, At: now})
	result, err = h.rec.Apply(context.Background(), right)
	if err != nil {
		t.Fatalf("apply right: %v", err)
	}
	if !result.Applied {
		t.Fatalf("expected delta applied, reason=%q", result.Reason)
	}
	if h.active.session.CurrentPage != 25 {
		t.Fatalf("expected page 25, got %d", h.active.session.CurrentPage)
	}
	if h.books.books["b1"].CurrentPage != 25 {
		t.Fatalf("expected book mirrored to 25, got %d", h.books.books["b1"].CurrentPage)
	}
}

func TestProfileStatsIgnoredByAuthority(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	env := envelope(t, "e1", domain.KindProfileStats, h.clock.now, domain.ProfileStats{TotalXP: 9999})
	result, err := h.rec.Apply(context.Background(), env)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.Applied {
		t.Fatal("expected authority to ignore peer stats cache")
	}
	if h.stats.cached != nil {
		t.Fatal("expected no profile cached")
	}
}

func TestApplyFullStateTwiceAwardsOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	state := domain.FullState{
		Device:      "wrist",
		PublishedAt: now,
		Books: []domain.BookRecord{
			{ID: "b2", Title: "Hyperion", TotalPages: 480, CurrentPage: 50, AddedAt: now, UpdatedAt: now},
		},
		Sessions: []domain.SessionRecord{
			{
				ID: "s1", BookID: "b1",
				StartedAt: now.Add(-2 * time.Hour), EndedAt: now.Add(-time.Hour),
				StartPage: 10, EndPage: 30, DurationSec: 3600, XP: 250, CountsTowardStats: true,
			},
		},
	}
	for i := 0; i < 2; i++ {
		if err := h.rec.ApplyFullState(context.Background(), state); err != nil {
			t.Fatalf("apply full state #%d: %v", i+1, err)
		}
	}
	if h.stats.awarded != 250 {
		t.Fatalf("expected xp awarded once, got %d", h.stats.awarded)
	}
	if len(h.sessions.sessions) != 1 {
		t.Fatalf("expected one record, got %d", len(h.sessions.sessions))
	}
	if _, ok := h.books.books["b2"]; !ok {
		t.Fatal("expected peer book absorbed")
	}
}

func TestExportStateRoundTrips(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.now
	h.sessions.sessions["s1"] = sessiondomain.Session{
		ID: "s1", BookID: "b1", StartedAt: now.Add(-time.Hour), EndedAt: now,
		StartPage: 10, EndPage: 40, Duration: time.Hour, XP: 300, CountsTowardStats: true,
	}
	h.active.session = &sessiondomain.ActiveSession{ID: "a1", BookID: "b1", StartedAt: now, LastUpdated: now, Device: "phone"}

	state, err := h.rec.ExportState(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if state.Device != "phone" {
		t.Fatalf("unexpected device %q", state.Device)
	}
	if len(state.Books) != 1 || len(state.Sessions) != 1 {
		t.Fatalf("unexpected export sizes: books=%d sessions=%d", len(state.Books), len(state.Sessions))
	}
	if state.Active == nil || state.Active.SessionID != "a1" {
		t.Fatal("expected active session exported")
	}
	if state.Stats == nil {
		t.Fatal("expected authority to export stats")
	}
}
