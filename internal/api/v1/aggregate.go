package v1

import (
	"time"

	"github.com/google/uuid"
)

// CollectionMetadata describes one transformed output collection.
// It is upserted into the metadata collection once a run completes.
type CollectionMetadata struct {
	Collection        string  `bson:"_id" json:"collection"`
	StartTime         float64 `bson:"start_time" json:"start_time"`
	EndTime           float64 `bson:"end_time" json:"end_time"`
	NumObjects        int64   `bson:"num_objects" json:"num_objects"`
	StartX            float64 `bson:"start_x" json:"start_x"`
	EndX              float64 `bson:"end_x" json:"end_x"`
	RoadSegmentLength float64 `bson:"road_segment_length" json:"road_segment_length"`
	Schema            string  `bson:"schema" json:"schema"`
	SourceCollection  string  `bson:"source_collection" json:"source_collection"`
	Period            float64 `bson:"period" json:"period"`
}

// Run status values recorded in the run ledger.
const (
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// TransformRun is one execution of the transform pipeline as recorded in the ledger.
type TransformRun struct {
	ID                 uuid.UUID `json:"id"`
	SourceCollection   string    `json:"source_collection"`
	OutputCollection   string    `json:"output_collection"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	Status             string    `json:"status"`
	RecordsProcessed   int64     `json:"records_processed"`
	RecordsSkipped     int64     `json:"records_skipped"`
	KeysFlushed        int64     `json:"keys_flushed"`
	LateSamples        int64     `json:"late_samples"`
	ValidationBypassed int64     `json:"validation_bypassed"`
	Error              string    `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *TransformRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
