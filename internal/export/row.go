package export

import (
	"fmt"
	"sort"

	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Row is one object at one output timestamp. The extended tuple slots are
// null for collections written with the basic layout.
type Row struct {
	Timestamp    float64  `parquet:"timestamp"`
	Direction    int32    `parquet:"direction"`
	ObjectID     string   `parquet:"object_id,dict,zstd"`
	CenterX      float64  `parquet:"center_x"`
	Y            float64  `parquet:"y"`
	Length       float64  `parquet:"length"`
	Width        float64  `parquet:"width"`
	Dir          float64  `parquet:"dir"`
	Velocity     float64  `parquet:"velocity"`
	Acceleration *float64 `parquet:"acceleration,optional"`
	Class        *float64 `parquet:"class,optional"`
	Node         *float64 `parquet:"node,optional"`
}

const (
	basicWidth    = 6
	extendedWidth = 9
)

var directions = []int{v1.Eastbound, v1.Westbound}

// rowsOf flattens one transformed document into rows, eastbound first and
// objects ordered by id within a direction.
func rowsOf(doc bson.Raw) ([]Row, error) {
	ts, ok := number(doc.Lookup("timestamp"))
	if !ok {
		return nil, fmt.Errorf("document has no numeric timestamp")
	}

	var rows []Row
	for _, dir := range directions {
		label, _ := v1.DirectionLabel(dir)
		sub, ok := doc.Lookup(label).DocumentOK()
		if !ok {
			continue
		}
		elems, err := sub.Elements()
		if err != nil {
			return nil, fmt.Errorf("read %s at %v: %w", label, ts, err)
		}
		sort.Slice(elems, func(i, j int) bool { return elems[i].Key() < elems[j].Key() })

		for _, e := range elems {
			tuple, err := tupleOf(e.Value())
			if err != nil {
				return nil, fmt.Errorf("object %s.%s at %v: %w", label, e.Key(), ts, err)
			}
			rows = append(rows, newRow(ts, dir, e.Key(), tuple))
		}
	}
	return rows, nil
}

func tupleOf(rv bson.RawValue) ([]float64, error) {
	arr, ok := rv.ArrayOK()
	if !ok {
		return nil, fmt.Errorf("attributes are not an array")
	}
	values, err := arr.Values()
	if err != nil {
		return nil, err
	}
	if len(values) != basicWidth && len(values) != extendedWidth {
		return nil, fmt.Errorf("attribute tuple has %d values, want %d or %d", len(values), basicWidth, extendedWidth)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		f, ok := number(v)
		if !ok {
			return nil, fmt.Errorf("attribute %d is not numeric", i)
		}
		out[i] = f
	}
	return out, nil
}

func newRow(ts float64, dir int, id string, t []float64) Row {
	r := Row{
		Timestamp: ts,
		Direction: int32(dir),
		ObjectID:  id,
		CenterX:   t[0],
		Y:         t[1],
		Length:    t[2],
		Width:     t[3],
		Dir:       t[4],
		Velocity:  t[5],
	}
	if len(t) == extendedWidth {
		r.Acceleration, r.Class, r.Node = &t[6], &t[7], &t[8]
	}
	return r
}

func number(rv bson.RawValue) (float64, bool) {
	switch rv.Type {
	case bson.TypeDouble:
		return rv.Double(), true
	case bson.TypeInt32:
		return float64(rv.Int32()), true
	case bson.TypeInt64:
		return float64(rv.Int64()), true
	}
	return 0, false
}
