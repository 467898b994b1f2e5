package postgres

import (
	"database/sql"
	"fmt"

	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRunRow scans one transform_runs row. A NULL error column becomes "".
func scanRunRow(row scanner) (v1.TransformRun, error) {
	var run v1.TransformRun
	var runErr sql.NullString

	err := row.Scan(
		&run.ID,
		&run.SourceCollection,
		&run.OutputCollection,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.RecordsProcessed,
		&run.RecordsSkipped,
		&run.KeysFlushed,
		&run.LateSamples,
		&run.ValidationBypassed,
		&runErr,
	)
	if err != nil {
		return v1.TransformRun{}, fmt.Errorf("failed to scan transform run: %w", err)
	}
	run.Error = runErr.String
	return run, nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
