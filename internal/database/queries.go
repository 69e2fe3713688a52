package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"opguide/internal/domain"
)

func (d *Database) RecordRun(ctx context.Context, run domain.Run) error {
	query := `insert into runs
	(session_key, started_at, finished_at, resource_count, group_count, failed_group_count)
	values (?, ?, ?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query,
		run.SessionKey,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.ResourceCount,
		run.GroupCount,
		run.FailedGroupCount,
	)

	return err
}

func (d *Database) GetRecentRuns(ctx context.Context, sessionKey string, limit int) ([]domain.Run, error) {
	query := `select session_key, started_at, finished_at, resource_count, group_count, failed_group_count
	from runs
	where session_key = ?
	order by started_at desc, id desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, sessionKey, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"sessionKey", sessionKey,
				"operation", "GetRecentRuns")
		}
	}()

	var runs []domain.Run
	for rows.Next() {
		var r domain.Run
		if err = rows.Scan(
			&r.SessionKey,
			&r.StartedAt,
			&r.FinishedAt,
			&r.ResourceCount,
			&r.GroupCount,
			&r.FailedGroupCount,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		runs = append(runs, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return runs, nil
}

func (d *Database) GetChatSettingsWithDefault(
	ctx context.Context,
	chatID int64,
) (*domain.ChatSettings, error) {
	query := `select chat_id, auto_opguide_hour_utc, report_types
	from chat_settings
	where chat_id = ?`

	var (
		cs          domain.ChatSettings
		hourUTC     sql.NullInt64
		reportTypes string
	)

	err := d.db.QueryRowContext(ctx, query, chatID).Scan(&cs.ChatID, &hourUTC, &reportTypes)
	if err == sql.ErrNoRows {
		return &domain.ChatSettings{ChatID: chatID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	if hourUTC.Valid {
		cs.AutoOpGuideHourUTC = &hourUTC.Int64
	}
	if cs.ReportTypes, err = decodeReportTypes(reportTypes); err != nil {
		return nil, err
	}

	return &cs, nil
}

func (d *Database) UpsertChatSettings(ctx context.Context, settings *domain.ChatSettings) error {
	query := `insert into chat_settings (chat_id, auto_opguide_hour_utc, report_types)
	values (?, ?, ?)
	on conflict (chat_id) do update
	set auto_opguide_hour_utc = excluded.auto_opguide_hour_utc,
	report_types = excluded.report_types`

	var hourUTC sql.NullInt64
	if settings.AutoOpGuideHourUTC != nil {
		hourUTC = sql.NullInt64{Int64: *settings.AutoOpGuideHourUTC, Valid: true}
	}

	reportTypes, err := encodeReportTypes(settings.ReportTypes)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, query,
		settings.ChatID,
		hourUTC,
		reportTypes,
	)

	return err
}

// GetHourChats returns the settings of every chat whose auto OpGuide is due
// at hourUTC.
func (d *Database) GetHourChats(ctx context.Context, hourUTC int64) ([]domain.ChatSettings, error) {
	query := `select chat_id, auto_opguide_hour_utc, report_types
	from chat_settings
	where auto_opguide_hour_utc = ?
	order by chat_id`

	rows, err := d.db.QueryContext(ctx, query, hourUTC)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"hourUTC", hourUTC,
				"operation", "GetHourChats")
		}
	}()

	var chats []domain.ChatSettings
	for rows.Next() {
		var (
			cs          domain.ChatSettings
			hour        int64
			reportTypes string
		)
		if err = rows.Scan(&cs.ChatID, &hour, &reportTypes); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		cs.AutoOpGuideHourUTC = &hour
		if cs.ReportTypes, err = decodeReportTypes(reportTypes); err != nil {
			return nil, err
		}
		chats = append(chats, cs)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return chats, nil
}

// Report types are stored as a JSON array so that any type name, the empty
// one included, survives the round trip. An empty column means no types.
func encodeReportTypes(types []string) (string, error) {
	if len(types) == 0 {
		return "", nil
	}

	raw, err := json.Marshal(types)
	if err != nil {
		return "", fmt.Errorf("encode report types: %w", err)
	}

	return string(raw), nil
}

func decodeReportTypes(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}

	var types []string
	if err := json.Unmarshal([]byte(raw), &types); err != nil {
		return nil, fmt.Errorf("decode report types: %w", err)
	}

	return types, nil
}
