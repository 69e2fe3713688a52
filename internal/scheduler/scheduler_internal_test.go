package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"opguide/internal/domain"
	"opguide/internal/opguide"
)

type fakeRunner struct {
	failKeys map[string]bool
	keys     []string
	types    [][]string
}

func (r *fakeRunner) Run(
	_ context.Context,
	key string,
	types []string,
) (opguide.Document, map[string]domain.GroupSummary, error) {
	r.keys = append(r.keys, key)
	r.types = append(r.types, types)

	if r.failKeys[key] {
		return opguide.Document{}, nil, errors.New("fetch failed")
	}

	return opguide.Document{FileName: key + ".docx"},
		map[string]domain.GroupSummary{"Firewall": {ResourceType: "Firewall", Count: 1, Summary: "ok"}},
		nil
}

type fakeChats struct {
	chats map[int64][]domain.ChatSettings
	err   error
}

func (c *fakeChats) GetHourChats(_ context.Context, hourUTC int64) ([]domain.ChatSettings, error) {
	return c.chats[hourUTC], c.err
}

type fakeSender struct {
	failChat int64
	sent     map[int64]string
}

func (s *fakeSender) SendOpGuide(
	_ context.Context,
	chatID int64,
	doc opguide.Document,
	_ map[string]domain.GroupSummary,
) error {
	if chatID == s.failChat {
		return errors.New("blocked by user")
	}
	s.sent[chatID] = doc.FileName
	return nil
}

func hour(h int64) *int64 {
	return &h
}

func newTestScheduler(runner runner, db chatStore, sender sender) *Scheduler {
	return New(context.Background(), runner, db, sender, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunHourSendsToDueChats(t *testing.T) {
	runner := &fakeRunner{failKeys: map[string]bool{"scheduled:2": true}}
	db := &fakeChats{chats: map[int64][]domain.ChatSettings{
		9: {
			{ChatID: 1, AutoOpGuideHourUTC: hour(9)},
			{ChatID: 2, AutoOpGuideHourUTC: hour(9)},
			{ChatID: 3, AutoOpGuideHourUTC: hour(9), ReportTypes: []string{"Firewall"}},
			{ChatID: 4, AutoOpGuideHourUTC: hour(9)},
		},
		10: {{ChatID: 5, AutoOpGuideHourUTC: hour(10)}},
	}}
	sender := &fakeSender{failChat: 3, sent: make(map[int64]string)}

	newTestScheduler(runner, db, sender).runHour(context.Background(), 9)

	if len(runner.keys) != 4 {
		t.Fatalf("Expected 4 runs, got %v", runner.keys)
	}
	if got := runner.types[2]; len(got) != 1 || got[0] != "Firewall" {
		t.Fatalf("Expected saved report types, got %v", got)
	}
	if len(sender.sent) != 2 || sender.sent[1] != "scheduled:1.docx" || sender.sent[4] != "scheduled:4.docx" {
		t.Fatalf("Unexpected deliveries %v", sender.sent)
	}
}

func TestRunHourChatsError(t *testing.T) {
	runner := &fakeRunner{}
	db := &fakeChats{err: errors.New("database is locked")}

	newTestScheduler(runner, db, &fakeSender{sent: make(map[int64]string)}).runHour(context.Background(), 9)

	if len(runner.keys) != 0 {
		t.Fatalf("Expected no runs, got %v", runner.keys)
	}
}

func TestRunHourCancelled(t *testing.T) {
	runner := &fakeRunner{}
	db := &fakeChats{chats: map[int64][]domain.ChatSettings{9: {{ChatID: 1}}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	newTestScheduler(runner, db, &fakeSender{sent: make(map[int64]string)}).runHour(ctx, 9)

	if len(runner.keys) != 0 {
		t.Fatalf("Expected no runs, got %v", runner.keys)
	}
}

func TestCheckHourChatsUsesUTCHour(t *testing.T) {
	runner := &fakeRunner{}
	db := &fakeChats{chats: map[int64][]domain.ChatSettings{6: {{ChatID: 1}}}}
	sender := &fakeSender{sent: make(map[int64]string)}

	s := newTestScheduler(runner, db, sender)
	s.now = func() time.Time {
		return time.Date(2024, 6, 1, 9, 0, 0, 0, time.FixedZone("MSK", 3*60*60))
	}

	s.checkHourChats()

	if len(sender.sent) != 1 {
		t.Fatalf("Expected one delivery at 06 UTC, got %v", sender.sent)
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(&fakeRunner{}, &fakeChats{}, &fakeSender{})

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
}
