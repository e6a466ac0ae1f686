package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const itemColumns = "id, name, source_path, archive_path, status, mode, frames, prompts_json, datasets, archive_bytes, error_message, error_kind, run_id, attempts, created_at, updated_at, started_at, finished_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		name         string
		sourcePath   string
		archivePath  sql.NullString
		statusStr    string
		mode         sql.NullString
		frames       int
		promptsJSON  sql.NullString
		datasets     int
		archiveBytes int64
		errorMessage sql.NullString
		errorKind    sql.NullString
		runID        sql.NullString
		attempts     int
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		startedRaw   sql.NullString
		finishedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&sourcePath,
		&archivePath,
		&statusStr,
		&mode,
		&frames,
		&promptsJSON,
		&datasets,
		&archiveBytes,
		&errorMessage,
		&errorKind,
		&runID,
		&attempts,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		Name:         name,
		SourcePath:   sourcePath,
		ArchivePath:  archivePath.String,
		Status:       Status(statusStr),
		Mode:         mode.String,
		Frames:       frames,
		Datasets:     datasets,
		ArchiveBytes: archiveBytes,
		ErrorMessage: errorMessage.String,
		ErrorKind:    errorKind.String,
		RunID:        runID.String,
		Attempts:     attempts,
	}
	if promptsJSON.Valid && promptsJSON.String != "" {
		if err := json.Unmarshal([]byte(promptsJSON.String), &item.Prompts); err != nil {
			return nil, err
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	item.StartedAt = parseOptionalTime(startedRaw)
	item.FinishedAt = parseOptionalTime(finishedRaw)
	return item, nil
}

func parseOptionalTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableJSON(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func idArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}
