package database_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"opguide/internal/database"
	"opguide/internal/domain"
)

func newDatabase(t *testing.T) *database.Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	db, err := database.New(context.Background(), dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close database: %v", err)
		}
	})

	return db
}

func hour(h int64) *int64 {
	return &h
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db.sqlite")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	for range 2 {
		db, err := database.New(context.Background(), dbPath, log)
		if err != nil {
			t.Fatalf("new database: %v", err)
		}
		if err = db.Close(); err != nil {
			t.Fatalf("close database: %v", err)
		}
	}
}

func TestChatSettingsDefault(t *testing.T) {
	db := newDatabase(t)

	settings, err := db.GetChatSettingsWithDefault(context.Background(), 42)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}

	if settings.ChatID != 42 || settings.AutoOpGuideHourUTC != nil || len(settings.ReportTypes) != 0 {
		t.Fatalf("unexpected default settings: %+v", settings)
	}
}

func TestChatSettingsUpsert(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)

	err := db.UpsertChatSettings(ctx, &domain.ChatSettings{
		ChatID:             42,
		AutoOpGuideHourUTC: hour(9),
		ReportTypes:        []string{"App Service", "Storage Account"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	settings, err := db.GetChatSettingsWithDefault(ctx, 42)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.AutoOpGuideHourUTC == nil || *settings.AutoOpGuideHourUTC != 9 {
		t.Fatalf("unexpected hour: %+v", settings)
	}
	if len(settings.ReportTypes) != 2 || settings.ReportTypes[1] != "Storage Account" {
		t.Fatalf("unexpected report types: %v", settings.ReportTypes)
	}

	if err = db.UpsertChatSettings(ctx, &domain.ChatSettings{ChatID: 42}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	settings, err = db.GetChatSettingsWithDefault(ctx, 42)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.AutoOpGuideHourUTC != nil || len(settings.ReportTypes) != 0 {
		t.Fatalf("expected auto OpGuide to be disabled: %+v", settings)
	}
}

func TestChatSettingsReportTypesRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)

	want := []string{"", "App Service", "Line\nBreak", " Padded "}
	if err := db.UpsertChatSettings(ctx, &domain.ChatSettings{
		ChatID:             42,
		AutoOpGuideHourUTC: hour(9),
		ReportTypes:        want,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	settings, err := db.GetChatSettingsWithDefault(ctx, 42)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if !slices.Equal(settings.ReportTypes, want) {
		t.Fatalf("expected %q, got %q", want, settings.ReportTypes)
	}

	chats, err := db.GetHourChats(ctx, 9)
	if err != nil {
		t.Fatalf("get hour chats: %v", err)
	}
	if len(chats) != 1 || !slices.Equal(chats[0].ReportTypes, want) {
		t.Fatalf("expected %q, got %+v", want, chats)
	}
}

func TestGetHourChats(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)

	for _, s := range []domain.ChatSettings{
		{ChatID: 1, AutoOpGuideHourUTC: hour(9)},
		{ChatID: -2, AutoOpGuideHourUTC: hour(9), ReportTypes: []string{"Firewall"}},
		{ChatID: 3, AutoOpGuideHourUTC: hour(10)},
		{ChatID: 4},
	} {
		if err := db.UpsertChatSettings(ctx, &s); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	chats, err := db.GetHourChats(ctx, 9)
	if err != nil {
		t.Fatalf("get hour chats: %v", err)
	}

	if len(chats) != 2 || chats[0].ChatID != -2 || chats[1].ChatID != 1 {
		t.Fatalf("unexpected chats: %+v", chats)
	}
	if len(chats[0].ReportTypes) != 1 || chats[0].ReportTypes[0] != "Firewall" {
		t.Fatalf("unexpected report types: %+v", chats[0])
	}
}

func TestRecordRun(t *testing.T) {
	ctx := context.Background()
	db := newDatabase(t)
	started := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for i := range 3 {
		err := db.RecordRun(ctx, domain.Run{
			SessionKey:       "chat-1",
			StartedAt:        started.Add(time.Duration(i) * time.Hour),
			FinishedAt:       started.Add(time.Duration(i)*time.Hour + time.Minute),
			ResourceCount:    8,
			GroupCount:       6,
			FailedGroupCount: i,
		})
		if err != nil {
			t.Fatalf("record run: %v", err)
		}
	}

	runs, err := db.GetRecentRuns(ctx, "chat-1", 2)
	if err != nil {
		t.Fatalf("get runs: %v", err)
	}

	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].FailedGroupCount != 2 || !runs[0].StartedAt.Equal(started.Add(2*time.Hour)) {
		t.Fatalf("expected newest run first, got %+v", runs[0])
	}

	other, err := db.GetRecentRuns(ctx, "chat-2", 10)
	if err != nil || len(other) != 0 {
		t.Fatalf("expected no runs for other session, got %v %v", other, err)
	}
}
