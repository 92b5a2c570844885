package task

import (
	"database/sql"
	"time"
)

const taskColumns = "id, source_url, title, platform, tenant, project, status, last_step, " +
	"error_reason, error_message, raw_path, duration_seconds, content_lang, target_lang, " +
	"pipeline_config_json, " +
	"parse_state, parse_key, parse_error, " +
	"subtitles_state, subtitles_key, subtitles_error, " +
	"dub_state, dub_key, dub_error, " +
	"pack_state, pack_key, pack_error, " +
	"scenes_state, scenes_key, scenes_error, " +
	"publish_state, publish_key, publish_error, " +
	"publish_url, publish_provider, pack_hash, created_at, updated_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id              string
		sourceURL       string
		title           sql.NullString
		platform        sql.NullString
		tenant          sql.NullString
		project         sql.NullString
		statusStr       string
		lastStep        sql.NullString
		errorReason     sql.NullString
		errorMessage    sql.NullString
		rawPath         sql.NullString
		duration        sql.NullFloat64
		contentLang     sql.NullString
		targetLang      sql.NullString
		pipelineConfig  sql.NullString
		stepCols        [6][3]sql.NullString
		publishURL      sql.NullString
		publishProvider sql.NullString
		packHash        sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	dest := []any{
		&id,
		&sourceURL,
		&title,
		&platform,
		&tenant,
		&project,
		&statusStr,
		&lastStep,
		&errorReason,
		&errorMessage,
		&rawPath,
		&duration,
		&contentLang,
		&targetLang,
		&pipelineConfig,
	}
	for i := range stepCols {
		dest = append(dest, &stepCols[i][0], &stepCols[i][1], &stepCols[i][2])
	}
	dest = append(dest, &publishURL, &publishProvider, &packHash, &createdRaw, &updatedRaw)

	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	record := func(cols [3]sql.NullString) StepRecord {
		return StepRecord{
			State:    StepState(cols[0].String),
			Key:      cols[1].String,
			ErrorMsg: cols[2].String,
		}
	}

	t := &Task{
		ID:              id,
		SourceURL:       sourceURL,
		Title:           title.String,
		Platform:        platform.String,
		Tenant:          tenant.String,
		Project:         project.String,
		Status:          Status(statusStr),
		LastStep:        Step(lastStep.String),
		ErrorReason:     errorReason.String,
		ErrorMessage:    errorMessage.String,
		RawPath:         rawPath.String,
		DurationSeconds: duration.Float64,
		ContentLang:     contentLang.String,
		TargetLang:      targetLang.String,
		PipelineConfig:  ParsePipelineConfig(pipelineConfig.String),
		Parse:           record(stepCols[0]),
		Subtitles:       record(stepCols[1]),
		Dub:             record(stepCols[2]),
		Pack:            record(stepCols[3]),
		Scenes:          record(stepCols[4]),
		Publish:         record(stepCols[5]),
		PublishURL:      publishURL.String,
		PublishProvider: publishProvider.String,
		PackHash:        packHash.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		t.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		t.UpdatedAt = updated
	}

	return t, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, sql.ErrNoRows
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
