package aggregation

// Schema strings recorded in the metadata document, one letter per tuple slot.
const (
	SchemaBasic    = "xylwdv"
	SchemaExtended = "xylwdvacn"
)

// Attributes is the fixed-order tuple stored per object under one output timestamp.
//
// Basic layout:    [center_x, y, length, width, direction, velocity]
// Extended layout: [center_x, y, length, width, direction, velocity, acceleration, class, node]
type Attributes []float64

// Layout describes which tuple shape a pipeline produces.
type Layout struct {
	Extended bool
}

// Schema returns the metadata schema string for the layout.
func (l Layout) Schema() string {
	if l.Extended {
		return SchemaExtended
	}
	return SchemaBasic
}

// Width returns the tuple length for the layout.
func (l Layout) Width() int {
	return len(l.Schema())
}

// Sample is one resampled point of one trajectory.
type Sample struct {
	Tick         int64
	X            float64
	Y            float64
	Length       float64
	Width        float64
	Velocity     float64
	Acceleration float64
}

// Tuple projects a sample into the output attribute tuple.
// X is the back of the vehicle, so the center sits half a length ahead of it
// in the direction of travel.
func (l Layout) Tuple(s Sample, direction int, class, node float64) Attributes {
	dir := float64(direction)
	out := make(Attributes, 0, l.Width())
	out = append(out,
		s.X+dir*0.5*s.Length,
		s.Y,
		s.Length,
		s.Width,
		dir,
		s.Velocity,
	)
	if l.Extended {
		out = append(out, s.Acceleration, class, node)
	}
	return out
}
