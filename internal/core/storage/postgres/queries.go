package postgres

const queryTransformRunsTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = 'transform_runs'
		)
	`

const queryRecordRun = `
		INSERT INTO transform_runs (
			id, source_collection, output_collection, started_at, finished_at, status,
			records_processed, records_skipped, keys_flushed, late_samples, validation_bypassed, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id)
		DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			records_processed = EXCLUDED.records_processed,
			records_skipped = EXCLUDED.records_skipped,
			keys_flushed = EXCLUDED.keys_flushed,
			late_samples = EXCLUDED.late_samples,
			validation_bypassed = EXCLUDED.validation_bypassed,
			error = EXCLUDED.error
	`

const queryListRuns = `
		SELECT id, source_collection, output_collection, started_at, finished_at, status,
			records_processed, records_skipped, keys_flushed, late_samples, validation_bypassed, error
		FROM transform_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
