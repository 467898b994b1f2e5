package v1

import (
	"errors"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrMalformedRecord is returned when a source document is missing a required
// field or carries one with the wrong shape. Callers skip the record.
var ErrMalformedRecord = errors.New("malformed trajectory record")

// Direction of travel along the road segment.
const (
	Eastbound = 1
	Westbound = -1
)

// DirectionLabel returns the sub-document key used for a direction in aggregate documents.
func DirectionLabel(direction int) (string, error) {
	switch direction {
	case Eastbound:
		return "eb", nil
	case Westbound:
		return "wb", nil
	default:
		return "", fmt.Errorf("direction must be %d or %d, got %d", Eastbound, Westbound, direction)
	}
}

// ParseDirection is the inverse of DirectionLabel.
func ParseDirection(label string) (int, error) {
	switch label {
	case "eb", "+1", "1":
		return Eastbound, nil
	case "wb", "-1":
		return Westbound, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", label)
	}
}

// Trajectory is one source document as read from a raw, stitched-and-merged or
// reconciled collection. It is immutable once decoded.
type Trajectory struct {
	// ID is the hex form of the document _id.
	ID        string
	Direction int

	Timestamp []float64
	X         []float64
	Y         []float64

	// Length and Width hold one value per sample, expanded from a scalar when
	// the document stores a single dimension for the whole trajectory.
	Length []float64
	Width  []float64

	// Velocity and Acceleration are nil when the document does not carry them.
	Velocity     []float64
	Acceleration []float64

	Class float64
	Node  float64

	FirstTimestamp float64
	LastTimestamp  float64
	StartingX      float64
	EndingX        float64
}

// Len returns the number of samples.
func (t *Trajectory) Len() int {
	return len(t.Timestamp)
}

// DecodeTrajectory reads a Trajectory from a raw BSON document.
// Every failure wraps ErrMalformedRecord.
func DecodeTrajectory(raw bson.Raw) (*Trajectory, error) {
	var t Trajectory
	var err error

	if t.ID, err = decodeID(raw); err != nil {
		return nil, err
	}

	dir, err := requiredNumber(raw, "direction")
	if err != nil {
		return nil, withID(err, t.ID)
	}
	t.Direction = int(dir)
	if t.Direction != Eastbound && t.Direction != Westbound {
		return nil, malformed(t.ID, "direction", fmt.Sprintf("must be %d or %d, got %v", Eastbound, Westbound, dir))
	}

	if t.Timestamp, err = requiredSeries(raw, "timestamp"); err != nil {
		return nil, withID(err, t.ID)
	}
	n := len(t.Timestamp)
	if n == 0 {
		return nil, malformed(t.ID, "timestamp", "must not be empty")
	}
	if t.X, err = requiredSeries(raw, "x_position"); err != nil {
		return nil, withID(err, t.ID)
	}
	if t.Y, err = requiredSeries(raw, "y_position"); err != nil {
		return nil, withID(err, t.ID)
	}
	if len(t.X) != n || len(t.Y) != n {
		return nil, malformed(t.ID, "x_position/y_position", fmt.Sprintf("length mismatch with timestamp (%d)", n))
	}

	if t.Length, err = dimension(raw, "length", n); err != nil {
		return nil, withID(err, t.ID)
	}
	if t.Width, err = dimension(raw, "width", n); err != nil {
		return nil, withID(err, t.ID)
	}

	if t.Velocity, err = optionalSeries(raw, "velocity"); err != nil {
		return nil, withID(err, t.ID)
	}
	if t.Acceleration, err = optionalSeries(raw, "acceleration"); err != nil {
		return nil, withID(err, t.ID)
	}

	t.Class, _ = optionalNumber(raw, "coarse_vehicle_class")
	t.Node, _ = optionalNumber(raw, "compute_node_id")

	return &t, nil
}

func decodeID(raw bson.Raw) (string, error) {
	rv, err := raw.LookupErr("_id")
	if err != nil {
		return "", malformed("", "_id", "is required")
	}
	if oid, ok := rv.ObjectIDOK(); ok {
		return oid.Hex(), nil
	}
	if s, ok := rv.StringValueOK(); ok && s != "" {
		return s, nil
	}
	return "", malformed("", "_id", "must be an ObjectID or a non-empty string")
}

func numeric(rv bson.RawValue) (float64, bool) {
	switch rv.Type {
	case bson.TypeDouble:
		return rv.Double(), true
	case bson.TypeInt32:
		return float64(rv.Int32()), true
	case bson.TypeInt64:
		return float64(rv.Int64()), true
	default:
		return 0, false
	}
}

func requiredNumber(raw bson.Raw, field string) (float64, error) {
	rv, err := raw.LookupErr(field)
	if err != nil {
		return 0, malformed("", field, "is required")
	}
	v, ok := numeric(rv)
	if !ok {
		return 0, malformed("", field, "must be a number")
	}
	return v, nil
}

func optionalNumber(raw bson.Raw, field string) (float64, bool) {
	rv, err := raw.LookupErr(field)
	if err != nil {
		return 0, false
	}
	return numeric(rv)
}

func arrayValues(rv bson.RawValue, field string) ([]float64, error) {
	arr, ok := rv.ArrayOK()
	if !ok {
		return nil, malformed("", field, "must be an array")
	}
	values, err := arr.Values()
	if err != nil {
		return nil, malformed("", field, err.Error())
	}
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := numeric(v)
		if !ok {
			return nil, malformed("", fmt.Sprintf("%s[%d]", field, i), "must be a number")
		}
		out[i] = f
	}
	return out, nil
}

func requiredSeries(raw bson.Raw, field string) ([]float64, error) {
	rv, err := raw.LookupErr(field)
	if err != nil {
		return nil, malformed("", field, "is required")
	}
	out, err := arrayValues(rv, field)
	if err != nil {
		return nil, err
	}
	return out, finite(out, field)
}

func optionalSeries(raw bson.Raw, field string) ([]float64, error) {
	rv, err := raw.LookupErr(field)
	if err != nil || rv.Type == bson.TypeNull {
		return nil, nil
	}
	return arrayValues(rv, field)
}

// dimension accepts either one number for the whole trajectory or one per sample.
func dimension(raw bson.Raw, field string, n int) ([]float64, error) {
	rv, err := raw.LookupErr(field)
	if err != nil {
		return nil, malformed("", field, "is required")
	}
	if v, ok := numeric(rv); ok {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, malformed("", field, fmt.Sprintf("must be finite, got %v", v))
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out, nil
	}
	out, err := arrayValues(rv, field)
	if err != nil {
		return nil, err
	}
	if len(out) != n {
		return nil, malformed("", field, fmt.Sprintf("has %d values, want 1 or %d", len(out), n))
	}
	return out, finite(out, field)
}

func finite(values []float64, field string) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return malformed("", fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("must be finite, got %v", v))
		}
	}
	return nil
}

// RecordError describes why one source document was rejected.
type RecordError struct {
	ID     string
	Field  string
	Reason string
}

func (e *RecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: field '%s': %s", ErrMalformedRecord, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s: field '%s': %s", ErrMalformedRecord, e.ID, e.Field, e.Reason)
}

func (e *RecordError) Unwrap() error {
	return ErrMalformedRecord
}

func malformed(id, field, reason string) error {
	return &RecordError{ID: id, Field: field, Reason: reason}
}

func withID(err error, id string) error {
	var re *RecordError
	if errors.As(err, &re) && re.ID == "" {
		re.ID = id
	}
	return err
}
