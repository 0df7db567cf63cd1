package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	sessiondomain "readsync/internal/modules/session/domain"
	"readsync/internal/modules/session/dto"
	sessionin "readsync/internal/modules/session/port/in"
	"readsync/internal/modules/session/service"
	syncdomain "readsync/internal/modules/sync/domain"
	syncin "readsync/internal/modules/sync/port/in"
)

// Interactor pairs every local lifecycle mutation with its outbound mirror
// message. The mutation is never blocked by transport failures; the publisher
// degrades to the durable queue on its own.
type Interactor struct {
	svc          *service.SessionService
	publisher    syncin.Publisher
	cleanupGrace time.Duration
	sleep        func(time.Duration)
	log          zerolog.Logger
}

func NewInteractor(svc *service.SessionService, publisher syncin.Publisher, cleanupGrace time.Duration, log zerolog.Logger) *Interactor {
	return &Interactor{
		svc:          svc,
		publisher:    publisher,
		cleanupGrace: cleanupGrace,
		sleep:        time.Sleep,
		log:          log.With().Str("component", "session_usecase").Logger(),
	}
}

var _ sessionin.Usecase = (*Interactor)(nil)

func (i *Interactor) Start(ctx context.Context, input dto.StartInput) (dto.StartOutput, error) {
	session, err := i.svc.Start(ctx, input.BookID, input.Page)
	if err != nil {
		return dto.StartOutput{}, err
	}
	i.publishSnapshot(ctx, session)
	return dto.StartOutput{
		SessionID: session.ID,
		BookID:    session.BookID,
		StartedAt: session.StartedAt,
	}, nil
}

func (i *Interactor) AdvancePage(ctx context.Context, input dto.AdvanceInput) (dto.ActiveOutput, error) {
	session, err := i.svc.Advance(ctx, input.Page)
	if err != nil {
		return dto.ActiveOutput{}, err
	}
	err = i.publisher.PageDelta(ctx, syncdomain.PageDelta{
		SessionID: session.ID,
		BookID:    session.BookID,
		Page:      session.CurrentPage,
		At:        session.LastUpdated,
	})
	if err != nil {
		i.log.Debug().Err(err).Msg("page delta publish failed")
	}
	return toActiveOutput(session, ""), nil
}

func (i *Interactor) Pause(ctx context.Context) (dto.ActiveOutput, error) {
	session, err := i.svc.Pause(ctx)
	if err != nil {
		return dto.ActiveOutput{}, err
	}
	i.publishSnapshot(ctx, session)
	return toActiveOutput(session, ""), nil
}

func (i *Interactor) Resume(ctx context.Context) (dto.ActiveOutput, error) {
	session, err := i.svc.Resume(ctx)
	if err != nil {
		return dto.ActiveOutput{}, err
	}
	i.publishSnapshot(ctx, session)
	return toActiveOutput(session, ""), nil
}

func (i *Interactor) Finish(ctx context.Context) (dto.FinishOutput, error) {
	session, record, err := i.svc.Finish(ctx)
	if err != nil {
		return dto.FinishOutput{}, err
	}
	err = i.publisher.Completion(ctx, syncdomain.Completion{
		ActiveSessionID:  session.ID,
		Record:           toRecord(record),
		EndLiveIndicator: true,
	})
	if err != nil {
		i.log.Warn().Err(err).Msg("completion publish failed")
	}
	return dto.FinishOutput{
		SessionID: record.ID,
		BookID:    record.BookID,
		Duration:  record.Duration,
		PagesRead: record.PagesRead(),
		XP:        record.XP,
	}, nil
}

func (i *Interactor) Abandon(ctx context.Context) error {
	session, err := i.svc.Abandon(ctx)
	if err != nil {
		return err
	}
	err = i.publisher.ActiveEnd(ctx, syncdomain.ActiveEnd{SessionID: session.ID, At: session.LastUpdated})
	if err != nil {
		i.log.Debug().Err(err).Msg("active end publish failed")
	}
	return nil
}

func (i *Interactor) GetActive(ctx context.Context) (dto.ActiveOutput, error) {
	session, book, err := i.svc.Active(ctx)
	if err != nil {
		return dto.ActiveOutput{}, err
	}
	return toActiveOutput(session, book.Title), nil
}

// CleanupStale retires an idle session and repairs indicator drift. The peer
// hears about the end before any local state is deleted, and the grace delay
// gives the notification a head start.
func (i *Interactor) CleanupStale(ctx context.Context) (dto.CleanupOutput, error) {
	out := dto.CleanupOutput{}

	session, stale, err := i.svc.StaleActive(ctx)
	if err != nil {
		return out, err
	}
	if stale {
		record := i.svc.AutoEndRecord(session)
		err := i.publisher.Completion(ctx, syncdomain.Completion{
			ActiveSessionID:  session.ID,
			Record:           toRecord(record),
			EndLiveIndicator: true,
		})
		if err != nil {
			i.log.Warn().Err(err).Msg("cleanup completion publish failed")
		}
		if i.cleanupGrace > 0 {
			i.sleep(i.cleanupGrace)
		}
		if err := i.svc.FinalizeEnd(ctx, record); err != nil {
			return out, err
		}
		out.Ended = append(out.Ended, session.ID)
	}

	torn, restored, err := i.svc.RepairIndicator(ctx)
	if err != nil {
		return out, err
	}
	out.IndicatorTorn = torn
	out.IndicatorRestored = restored
	return out, nil
}

func (i *Interactor) publishSnapshot(ctx context.Context, session sessiondomain.ActiveSession) {
	err := i.publisher.ActiveSnapshot(ctx, syncdomain.ActiveSnapshot{
		SessionID:    session.ID,
		BookID:       session.BookID,
		StartedAt:    session.StartedAt,
		StartPage:    session.StartPage,
		CurrentPage:  session.CurrentPage,
		Paused:       session.Paused,
		PausedAt:     session.PausedAt,
		PausedForSec: int64(session.PausedFor / time.Second),
		LastUpdated:  session.LastUpdated,
		Device:       session.Device,
	})
	if err != nil {
		i.log.Debug().Err(err).Msg("snapshot publish failed")
	}
}

func toRecord(s sessiondomain.Session) syncdomain.SessionRecord {
	return syncdomain.SessionRecord{
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

func toActiveOutput(session sessiondomain.ActiveSession, bookTitle string) dto.ActiveOutput {
	return dto.ActiveOutput{
		SessionID:   session.ID,
		BookID:      session.BookID,
		BookTitle:   bookTitle,
		StartedAt:   session.StartedAt,
		StartPage:   session.StartPage,
		CurrentPage: session.CurrentPage,
		Paused:      session.Paused,
		PausedFor:   session.PausedFor,
		LastUpdated: session.LastUpdated,
		Device:      session.Device,
	}
}
