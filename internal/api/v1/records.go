package v1

import (
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Track is the time-series part shared by fragments and reconciled trajectories.
// The summary fields are derived from the series by Summarize and are not
// accepted from clients.
type Track struct {
	Timestamp []float64 `bson:"timestamp" json:"timestamp"`
	XPosition []float64 `bson:"x_position" json:"x_position"`
	YPosition []float64 `bson:"y_position" json:"y_position"`

	// Length and Width hold either one value or one per sample.
	Length []float64 `bson:"length" json:"length"`
	Width  []float64 `bson:"width" json:"width"`
	Height []float64 `bson:"height,omitempty" json:"height,omitempty"`

	Direction int `bson:"direction" json:"direction"`

	Velocity     []float64 `bson:"velocity,omitempty" json:"velocity,omitempty"`
	Acceleration []float64 `bson:"acceleration,omitempty" json:"acceleration,omitempty"`

	FirstTimestamp float64 `bson:"first_timestamp" json:"first_timestamp"`
	LastTimestamp  float64 `bson:"last_timestamp" json:"last_timestamp"`
	StartingX      float64 `bson:"starting_x" json:"starting_x"`
	EndingX        float64 `bson:"ending_x" json:"ending_x"`
}

// Validate checks required fields and series shapes.
func (t *Track) Validate() error {
	n := len(t.Timestamp)
	if n == 0 {
		return fmt.Errorf("timestamp is required")
	}
	if len(t.XPosition) != n {
		return fmt.Errorf("x_position must have %d values, got %d", n, len(t.XPosition))
	}
	if len(t.YPosition) != n {
		return fmt.Errorf("y_position must have %d values, got %d", n, len(t.YPosition))
	}
	for i := 1; i < n; i++ {
		if t.Timestamp[i] < t.Timestamp[i-1] {
			return fmt.Errorf("timestamp must be non-decreasing (index %d)", i)
		}
	}
	if err := checkDimension("length", t.Length, n, true); err != nil {
		return err
	}
	if err := checkDimension("width", t.Width, n, true); err != nil {
		return err
	}
	if err := checkDimension("height", t.Height, n, false); err != nil {
		return err
	}
	if t.Direction != Eastbound && t.Direction != Westbound {
		return fmt.Errorf("direction must be %d or %d", Eastbound, Westbound)
	}
	if t.Velocity != nil && len(t.Velocity) != n {
		return fmt.Errorf("velocity must have %d values, got %d", n, len(t.Velocity))
	}
	if t.Acceleration != nil && len(t.Acceleration) != n {
		return fmt.Errorf("acceleration must have %d values, got %d", n, len(t.Acceleration))
	}
	for _, series := range [][]float64{t.Timestamp, t.XPosition, t.YPosition} {
		for _, v := range series {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("series values must be finite")
			}
		}
	}
	return nil
}

// Summarize fills the indexed summary fields from the series.
func (t *Track) Summarize() {
	n := len(t.Timestamp)
	if n == 0 {
		return
	}
	t.FirstTimestamp = t.Timestamp[0]
	t.LastTimestamp = t.Timestamp[n-1]
	t.StartingX = t.XPosition[0]
	t.EndingX = t.XPosition[n-1]
}

func checkDimension(name string, values []float64, n int, required bool) error {
	if len(values) == 0 {
		if required {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
	if len(values) != 1 && len(values) != n {
		return fmt.Errorf("%s must have 1 or %d values, got %d", name, n, len(values))
	}
	for _, v := range values {
		if v <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

// Provenance is stamped on every written record by the store, never by the client.
type Provenance struct {
	ConfigurationID string    `bson:"configuration_id,omitempty" json:"configuration_id,omitempty"`
	ComputeNodeID   int       `bson:"compute_node_id" json:"compute_node_id"`
	WrittenAt       time.Time `bson:"db_write_timestamp" json:"db_write_timestamp"`
}

// Fragment is one tracked vehicle fragment as produced by a tracking node.
type Fragment struct {
	ID                 bson.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	LocalFragmentID    int64         `bson:"local_fragment_id,omitempty" json:"local_fragment_id,omitempty"`
	CoarseVehicleClass *int          `bson:"coarse_vehicle_class,omitempty" json:"coarse_vehicle_class,omitempty"`
	FineVehicleClass   *int          `bson:"fine_vehicle_class,omitempty" json:"fine_vehicle_class,omitempty"`
	RoadSegmentIDs     []int         `bson:"road_segment_ids,omitempty" json:"road_segment_ids,omitempty"`
	Track              `bson:",inline"`
	Provenance         `bson:",inline"`
}

// Validate ensures the fragment carries every required field.
func (f *Fragment) Validate() error {
	if err := f.Track.Validate(); err != nil {
		return err
	}
	if f.RoadSegmentIDs != nil && len(f.RoadSegmentIDs) != len(f.Timestamp) {
		return fmt.Errorf("road_segment_ids must have %d values, got %d", len(f.Timestamp), len(f.RoadSegmentIDs))
	}
	return nil
}

// StitchedTrajectory links the fragments that belong to one vehicle.
type StitchedTrajectory struct {
	ID             bson.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	FragmentIDs    []bson.ObjectID `bson:"fragment_ids" json:"fragment_ids"`
	Direction      int             `bson:"direction,omitempty" json:"direction,omitempty"`
	FirstTimestamp float64         `bson:"first_timestamp,omitempty" json:"first_timestamp,omitempty"`
	LastTimestamp  float64         `bson:"last_timestamp,omitempty" json:"last_timestamp,omitempty"`
	Provenance     `bson:",inline"`
}

// Validate ensures the stitched trajectory references at least one fragment.
func (s *StitchedTrajectory) Validate() error {
	if len(s.FragmentIDs) == 0 {
		return fmt.Errorf("fragment_ids is required")
	}
	seen := make(map[bson.ObjectID]struct{}, len(s.FragmentIDs))
	for _, id := range s.FragmentIDs {
		if id.IsZero() {
			return fmt.Errorf("fragment_ids must not contain empty ids")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("fragment_ids contains duplicate %s", id.Hex())
		}
		seen[id] = struct{}{}
	}
	if s.Direction != 0 && s.Direction != Eastbound && s.Direction != Westbound {
		return fmt.Errorf("direction must be %d or %d", Eastbound, Westbound)
	}
	if s.LastTimestamp < s.FirstTimestamp {
		return fmt.Errorf("last_timestamp must not precede first_timestamp")
	}
	return nil
}

// ReconciledTrajectory is a smoothed trajectory ready for downstream transforms.
type ReconciledTrajectory struct {
	ID                 bson.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	CoarseVehicleClass int             `bson:"coarse_vehicle_class" json:"coarse_vehicle_class"`
	FineVehicleClass   *int            `bson:"fine_vehicle_class,omitempty" json:"fine_vehicle_class,omitempty"`
	FragmentIDs        []bson.ObjectID `bson:"fragment_ids,omitempty" json:"fragment_ids,omitempty"`
	Track              `bson:",inline"`
	Provenance         `bson:",inline"`
}

// Validate ensures the reconciled trajectory carries every required field.
func (r *ReconciledTrajectory) Validate() error {
	if err := r.Track.Validate(); err != nil {
		return err
	}
	if r.CoarseVehicleClass < 0 {
		return fmt.Errorf("coarse_vehicle_class must be >= 0")
	}
	return nil
}
