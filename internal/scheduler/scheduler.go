package scheduler

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"opguide/internal/domain"
	"opguide/internal/opguide"
)

const (
	HourlyOpGuideSpec      = "0 * * * *"
	Timezone               = "UTC"
	TimezoneOffsetSeconds  = 0
	checkHourChatsTimeout  = 45 * time.Minute
	scheduledSessionPrefix = "scheduled:"
)

type runner interface {
	Run(ctx context.Context, key string, types []string) (opguide.Document, map[string]domain.GroupSummary, error)
}

type chatStore interface {
	GetHourChats(ctx context.Context, hourUTC int64) ([]domain.ChatSettings, error)
}

type sender interface {
	SendOpGuide(
		ctx context.Context,
		chatID int64,
		doc opguide.Document,
		summaries map[string]domain.GroupSummary,
	) error
}

type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	runner runner
	db     chatStore
	sender sender
	now    func() time.Time
	log    *slog.Logger
}

func New(ctx context.Context, runner runner, db chatStore, sender sender, log *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:    ctx,
		cron:   c,
		runner: runner,
		db:     db,
		sender: sender,
		now:    time.Now,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(HourlyOpGuideSpec, s.checkHourChats); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop stops the cron and waits for a running check to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) checkHourChats() {
	ctx, cancel := context.WithTimeout(s.ctx, checkHourChatsTimeout)
	defer cancel()

	s.runHour(ctx, int64(s.now().UTC().Hour()))
}

// runHour sends an OpGuide to every chat scheduled at hourUTC. A failing chat
// does not stop the others.
func (s *Scheduler) runHour(ctx context.Context, hourUTC int64) {
	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	chats, err := s.db.GetHourChats(ctx, hourUTC)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to get hour chats",
			"error", err,
			"hourUTC", hourUTC)
		return
	}

	for _, chat := range chats {
		if ctx.Err() != nil {
			s.log.InfoContext(ctx, "Scheduler context is done",
				"error", ctx.Err())
			return
		}

		key := scheduledSessionPrefix + strconv.FormatInt(chat.ChatID, 10)

		doc, summaries, err := s.runner.Run(ctx, key, chat.ReportTypes)
		if err != nil {
			s.log.ErrorContext(ctx, "Failed to run OpGuide",
				"error", err,
				"hourUTC", hourUTC,
				"chatID", chat.ChatID,
				"reportTypes", chat.ReportTypes)
			continue
		}

		if err = s.sender.SendOpGuide(ctx, chat.ChatID, doc, summaries); err != nil {
			s.log.ErrorContext(ctx, "Failed to send OpGuide",
				"error", err,
				"hourUTC", hourUTC,
				"chatID", chat.ChatID,
				"groupCount", len(summaries))
			continue
		}

		s.log.InfoContext(ctx, "Scheduled OpGuide is sent",
			"hourUTC", hourUTC,
			"chatID", chat.ChatID,
			"fileName", doc.FileName)
	}
}
