package usecase_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	libraryoutadapter "readsync/internal/modules/library/adapter/out"
	librarydomain "readsync/internal/modules/library/domain"
	sessionoutadapter "readsync/internal/modules/session/adapter/out"
	sessiondto "readsync/internal/modules/session/dto"
	sessionservice "readsync/internal/modules/session/service"
	sessionusecase "readsync/internal/modules/session/usecase"
	statsoutadapter "readsync/internal/modules/stats/adapter/out"
	statsservice "readsync/internal/modules/stats/service"
	statsusecase "readsync/internal/modules/stats/usecase"
	syncoutadapter "readsync/internal/modules/sync/adapter/out"
	"readsync/internal/modules/sync/domain"
	"readsync/internal/modules/sync/dto"
	syncservice "readsync/internal/modules/sync/service"
	syncusecase "readsync/internal/modules/sync/usecase"
	"readsync/internal/platform/clock"
	"readsync/internal/platform/id"
	"readsync/internal/platform/logging"
)

// peer is one fully wired device: real sqlite and file adapters in a temp
// directory, loopback transport instead of the shared folder.
type peer struct {
	tag        string
	books      *libraryoutadapter.SQLiteBookStore
	sessions   *sessionoutadapter.SQLiteSessionStore
	link       *syncoutadapter.LoopbackLink
	reconciler *syncservice.Reconciler
	coord      *syncservice.Coordinator
	syncUC     *syncusecase.Interactor
	sessionUC  *sessionusecase.Interactor
	statsUC    *statsusecase.Interactor

	mu       sync.Mutex
	received []domain.Envelope
}

func newPeer(t *testing.T, tag string, authority bool) *peer {
	t.Helper()
	dir := t.TempDir()
	clk := clock.SystemClock{}
	ids := id.UUID{}
	log := logging.Nop()

	books, err := libraryoutadapter.NewSQLiteBookStore(filepath.Join(dir, "readsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { books.DB().Close() })
	sessions, err := sessionoutadapter.NewSQLiteSessionStore(books.DB())
	require.NoError(t, err)
	activeStore := sessionoutadapter.NewFileActiveSessionStore(dir)
	liveStatus := sessionoutadapter.NewFileLiveStatus(dir)
	catalog := sessionoutadapter.NewBookCatalogAdapter(books, clk)

	profiles, err := statsoutadapter.NewSQLiteProfileStore(books.DB())
	require.NoError(t, err)
	journal := statsoutadapter.NewFileStreakJournal(dir)
	statsSvc := statsservice.NewStatsService(
		clk, ids, profiles, profiles, journal,
		statsoutadapter.NewSessionHistoryAdapter(sessions), log,
	)
	statsUC := statsusecase.NewInteractor(statsSvc, profiles, journal)

	link := syncoutadapter.NewLoopbackLink()
	queue, err := syncoutadapter.NewFileQueue(dir)
	require.NoError(t, err)
	outbox := syncservice.NewOutbox(link, queue, log)
	reconciler := syncservice.NewReconciler(
		clk, ids, tag, authority,
		books, sessions, activeStore, liveStatus,
		statsUC, nil, log,
	)
	// The debounce window is effectively infinite so exports only happen when
	// a test forces them.
	coord := syncservice.NewCoordinator(time.Hour, reconciler.ExportState, outbox, clk, log)
	t.Cleanup(coord.Stop)
	syncUC := syncusecase.NewInteractor(reconciler, outbox, coord, clk, ids, tag, authority)

	sessionSvc := sessionservice.NewSessionService(
		clk, ids, tag, 4*time.Hour,
		sessions, activeStore, liveStatus, catalog, statsUC, log,
	)
	sessionUC := sessionusecase.NewInteractor(sessionSvc, syncUC, 0, log)

	return &peer{
		tag:        tag,
		books:      books,
		sessions:   sessions,
		link:       link,
		reconciler: reconciler,
		coord:      coord,
		syncUC:     syncUC,
		sessionUC:  sessionUC,
		statsUC:    statsUC,
	}
}

func (p *peer) seedBook(t *testing.T, id string, pages, current int) {
	t.Helper()
	now := time.Now().UTC()
	err := p.books.Upsert(context.Background(), librarydomain.Book{
		ID: id, Title: "Dune", TotalPages: pages, CurrentPage: current,
		AddedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
}

// connect routes a's outbound traffic into b's reconciler, recording each
// envelope so tests can replay them.
func connect(a, b *peer) {
	a.link.Connect(
		func(ctx context.Context, env domain.Envelope) error {
			b.mu.Lock()
			b.received = append(b.received, env)
			b.mu.Unlock()
			_, err := b.reconciler.Apply(ctx, env)
			return err
		},
		func(ctx context.Context, state domain.FullState) error {
			return b.reconciler.ApplyFullState(ctx, state)
		},
	)
}

func TestCompletionPropagatesAndStaysIdempotent(t *testing.T) {
	t.Parallel()
	phone := newPeer(t, "phone", true)
	wrist := newPeer(t, "wrist", false)
	connect(phone, wrist)
	connect(wrist, phone)
	phone.seedBook(t, "b1", 500, 10)
	wrist.seedBook(t, "b1", 500, 10)
	ctx := context.Background()

	_, err := phone.sessionUC.Start(ctx, sessiondto.StartInput{BookID: "b1", Page: 10})
	require.NoError(t, err)
	_, err = phone.sessionUC.AdvancePage(ctx, sessiondto.AdvanceInput{Page: 30})
	require.NoError(t, err)
	finish, err := phone.sessionUC.Finish(ctx)
	require.NoError(t, err)
	require.Equal(t, 20, finish.PagesRead)

	// Finishing forces the full-state export out immediately. With the hour
	// debounce window, a publish this early can only be the forced one.
	require.False(t, phone.coord.LastPublishedAt().IsZero())

	// The wrist converged on the same record and book position.
	wristSessions, err := wrist.sessions.List(ctx)
	require.NoError(t, err)
	require.Len(t, wristSessions, 1)
	require.Equal(t, finish.SessionID, wristSessions[0].ID)
	wristBook, err := wrist.books.Get(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, 30, wristBook.CurrentPage)

	wristProfile, _, err := wrist.statsUC.Show(ctx)
	require.NoError(t, err)
	require.Equal(t, finish.XP, wristProfile.TotalXP)

	// Replaying the captured completion must change nothing.
	wrist.mu.Lock()
	captured := append([]domain.Envelope{}, wrist.received...)
	wrist.mu.Unlock()
	var completion domain.Envelope
	for _, env := range captured {
		if env.Kind == domain.KindSessionCompletion {
			completion = env
		}
	}
	require.NotEmpty(t, completion.ID)

	result, err := wrist.reconciler.Apply(ctx, completion)
	require.NoError(t, err)
	require.False(t, result.Applied)
	require.Equal(t, "duplicate envelope", result.Reason)

	wristProfile, _, err = wrist.statsUC.Show(ctx)
	require.NoError(t, err)
	require.Equal(t, finish.XP, wristProfile.TotalXP)
	wristSessions, err = wrist.sessions.List(ctx)
	require.NoError(t, err)
	require.Len(t, wristSessions, 1)
}

func TestOutageQueuesThenSyncNowConverges(t *testing.T) {
	t.Parallel()
	phone := newPeer(t, "phone", true)
	wrist := newPeer(t, "wrist", false)
	connect(phone, wrist)
	connect(wrist, phone)
	phone.seedBook(t, "b1", 500, 10)
	wrist.seedBook(t, "b1", 500, 10)
	ctx := context.Background()

	phone.link.SetFailing(true)
	_, err := phone.sessionUC.Start(ctx, sessiondto.StartInput{BookID: "b1", Page: 10})
	require.NoError(t, err)
	_, err = phone.sessionUC.AdvancePage(ctx, sessiondto.AdvanceInput{Page: 25})
	require.NoError(t, err)
	finish, err := phone.sessionUC.Finish(ctx)
	require.NoError(t, err)

	// Everything parked durably while the peer was out of range.
	pending, err := phone.syncUC.Queue(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	status, err := phone.syncUC.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, status.PendingMessages)
	require.True(t, status.StatsAuthority)

	wristSessions, err := wrist.sessions.List(ctx)
	require.NoError(t, err)
	require.Empty(t, wristSessions)

	phone.link.SetFailing(false)
	out, err := phone.syncUC.SyncNow(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, out.Flushed)
	require.True(t, out.Published)

	pending, err = phone.syncUC.Queue(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	wristSessions, err = wrist.sessions.List(ctx)
	require.NoError(t, err)
	require.Len(t, wristSessions, 1)
	require.Equal(t, finish.SessionID, wristSessions[0].ID)

	// The queued envelopes plus the forced full-state document overlap; the
	// merge keeps the credit single.
	wristProfile, _, err := wrist.statsUC.Show(ctx)
	require.NoError(t, err)
	require.Equal(t, finish.XP, wristProfile.TotalXP)
}

func TestApplyRejectsMalformedEnvelope(t *testing.T) {
	t.Parallel()
	phone := newPeer(t, "phone", true)
	_, err := phone.syncUC.Apply(context.Background(), dto.ApplyInput{Raw: []byte("{not json")})
	require.Error(t, err)
}

func TestApplyRejectsUnknownKind(t *testing.T) {
	t.Parallel()
	phone := newPeer(t, "phone", true)
	_, err := phone.syncUC.Apply(context.Background(), dto.ApplyInput{
		Raw: []byte(`{"id":"e1","kind":"telepathy","device":"wrist","payload":{}}`),
	})
	require.Error(t, err)
}
