package bootstrap

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	libraryinadapter "readsync/internal/modules/library/adapter/in"
	libraryoutadapter "readsync/internal/modules/library/adapter/out"
	libraryservice "readsync/internal/modules/library/service"
	libraryusecase "readsync/internal/modules/library/usecase"
	sessioninadapter "readsync/internal/modules/session/adapter/in"
	sessionoutadapter "readsync/internal/modules/session/adapter/out"
	sessionservice "readsync/internal/modules/session/service"
	sessionusecase "readsync/internal/modules/session/usecase"
	statsinadapter "readsync/internal/modules/stats/adapter/in"
	statsoutadapter "readsync/internal/modules/stats/adapter/out"
	statsservice "readsync/internal/modules/stats/service"
	statsusecase "readsync/internal/modules/stats/usecase"
	syncinadapter "readsync/internal/modules/sync/adapter/in"
	syncoutadapter "readsync/internal/modules/sync/adapter/out"
	syncservice "readsync/internal/modules/sync/service"
	syncusecase "readsync/internal/modules/sync/usecase"
	"readsync/internal/platform/clock"
	"readsync/internal/platform/config"
	"readsync/internal/platform/id"
	"readsync/internal/platform/logging"
	"readsync/internal/platform/metrics"
	uiapp "readsync/internal/ui/app"
)

type App struct {
	LibraryCLI libraryinadapter.CLIHandler
	SessionCLI sessioninadapter.CLIHandler
	StatsCLI   statsinadapter.CLIHandler
	SyncCLI    syncinadapter.CLIHandler

	Log zerolog.Logger
}

func New(cfg config.Config) (*App, error) {
	clk := clock.SystemClock{}
	ids := id.UUID{}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	metrics.Register(prometheus.DefaultRegisterer)

	bookStore, err := libraryoutadapter.NewSQLiteBookStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("new book store: %w", err)
	}
	librarySvc := libraryservice.NewBookService(clk, ids, bookStore)
	libraryUC := libraryusecase.NewInteractor(librarySvc, bookStore)

	sessionStore, err := sessionoutadapter.NewSQLiteSessionStore(bookStore.DB())
	if err != nil {
		return nil, fmt.Errorf("new session store: %w", err)
	}
	activeStore := sessionoutadapter.NewFileActiveSessionStore(cfg.DataDir)
	liveStatus := sessionoutadapter.NewFileLiveStatus(cfg.DataDir)
	catalog := sessionoutadapter.NewBookCatalogAdapter(bookStore, clk)

	profileStore, err := statsoutadapter.NewSQLiteProfileStore(bookStore.DB())
	if err != nil {
		return nil, fmt.Errorf("new profile store: %w", err)
	}
	journal := statsoutadapter.NewFileStreakJournal(cfg.DataDir)
	statsSvc := statsservice.NewStatsService(
		clk, ids, profileStore, profileStore,
		journal,
		statsoutadapter.NewSessionHistoryAdapter(sessionStore),
		log,
	)
	statsUC := statsusecase.NewInteractor(statsSvc, profileStore, journal)

	link, err := syncoutadapter.NewDirLink(cfg.TransferDir)
	if err != nil {
		return nil, fmt.Errorf("new transfer link: %w", err)
	}
	queue, err := syncoutadapter.NewFileQueue(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("new pending queue: %w", err)
	}
	outbox := syncservice.NewOutbox(link, queue, log)
	reconciler := syncservice.NewReconciler(
		clk, ids, cfg.DeviceTag, cfg.StatsAuthority,
		bookStore, sessionStore, activeStore, liveStatus,
		statsUC, nil, log,
	)
	coordinator := syncservice.NewCoordinator(cfg.DebounceWindow, reconciler.ExportState, outbox, clk, log)
	syncUC := syncusecase.NewInteractor(reconciler, outbox, coordinator, clk, ids, cfg.DeviceTag, cfg.StatsAuthority)

	sessionSvc := sessionservice.NewSessionService(
		clk, ids, cfg.DeviceTag, cfg.InactivityThreshold,
		sessionStore, activeStore, liveStatus, catalog, statsUC, log,
	)
	sessionUC := sessionusecase.NewInteractor(sessionSvc, syncUC, cfg.CleanupGrace, log)

	return &App{
		LibraryCLI: libraryinadapter.NewCLIHandler(libraryUC),
		SessionCLI: sessioninadapter.NewCLIHandler(sessionUC),
		StatsCLI:   statsinadapter.NewCLIHandler(statsUC),
		SyncCLI:    syncinadapter.NewCLIHandler(syncUC),
		Log:        log,
	}, nil
}

func RunTUI(cfg config.Config, app *App) error {
	model := uiapp.NewModel(cfg.DeviceTag, app.LibraryCLI, app.SessionCLI, app.StatsCLI, app.SyncCLI)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
