package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func validTrack() Track {
	return Track{
		Timestamp: []float64{1.0, 1.04, 1.08},
		XPosition: []float64{10, 11, 12},
		YPosition: []float64{5, 5, 5},
		Length:    []float64{14},
		Width:     []float64{6},
		Direction: Eastbound,
	}
}

func TestTrack_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Track)
		wantErr string
	}{
		{name: "valid", mutate: func(*Track) {}},
		{name: "per sample dimensions", mutate: func(tr *Track) { tr.Length = []float64{14, 14, 14} }},
		{name: "missing timestamp", mutate: func(tr *Track) { tr.Timestamp = nil }, wantErr: "timestamp is required"},
		{name: "x mismatch", mutate: func(tr *Track) { tr.XPosition = tr.XPosition[:2] }, wantErr: "x_position"},
		{name: "timestamps go backwards", mutate: func(tr *Track) { tr.Timestamp[2] = 0 }, wantErr: "non-decreasing"},
		{name: "missing length", mutate: func(tr *Track) { tr.Length = nil }, wantErr: "length is required"},
		{name: "bad width shape", mutate: func(tr *Track) { tr.Width = []float64{1, 2} }, wantErr: "width must have"},
		{name: "zero direction", mutate: func(tr *Track) { tr.Direction = 0 }, wantErr: "direction"},
		{name: "velocity shape", mutate: func(tr *Track) { tr.Velocity = []float64{1} }, wantErr: "velocity"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := validTrack()
			tc.mutate(&tr)
			err := tr.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTrack_Summarize(t *testing.T) {
	tr := validTrack()
	tr.Summarize()
	assert.Equal(t, 1.0, tr.FirstTimestamp)
	assert.Equal(t, 1.08, tr.LastTimestamp)
	assert.Equal(t, 10.0, tr.StartingX)
	assert.Equal(t, 12.0, tr.EndingX)
}

func TestFragment_BSONIsFlat(t *testing.T) {
	f := Fragment{Track: validTrack(), Provenance: Provenance{ConfigurationID: "cfg-1", ComputeNodeID: 3}}
	f.Summarize()
	require.NoError(t, f.Validate())

	b, err := bson.Marshal(&f)
	require.NoError(t, err)
	raw := bson.Raw(b)

	_, err = raw.LookupErr("first_timestamp")
	assert.NoError(t, err, "summary fields are top-level for indexing")
	_, err = raw.LookupErr("Track")
	assert.Error(t, err)
	assert.Equal(t, "cfg-1", raw.Lookup("configuration_id").StringValue())
	_, err = raw.LookupErr("_id")
	assert.Error(t, err, "zero id is left for the store to assign")
}

func TestFragment_RoadSegmentShape(t *testing.T) {
	f := Fragment{Track: validTrack(), RoadSegmentIDs: []int{1}}
	assert.Error(t, f.Validate())
}

func TestStitchedTrajectory_Validation(t *testing.T) {
	a, b := bson.NewObjectID(), bson.NewObjectID()

	assert.Error(t, (&StitchedTrajectory{}).Validate())
	assert.Error(t, (&StitchedTrajectory{FragmentIDs: []bson.ObjectID{a, a}}).Validate())
	assert.Error(t, (&StitchedTrajectory{FragmentIDs: []bson.ObjectID{a}, Direction: 2}).Validate())
	assert.NoError(t, (&StitchedTrajectory{FragmentIDs: []bson.ObjectID{a, b}, Direction: Westbound}).Validate())
}

func TestStitchedTrajectory_JSONHexIDs(t *testing.T) {
	a := bson.NewObjectID()
	body := `{"fragment_ids": ["` + a.Hex() + `"]}`

	var s StitchedTrajectory
	require.NoError(t, json.Unmarshal([]byte(body), &s))
	require.Len(t, s.FragmentIDs, 1)
	assert.Equal(t, a, s.FragmentIDs[0])
}

func TestReconciledTrajectory_Validation(t *testing.T) {
	r := ReconciledTrajectory{Track: validTrack(), CoarseVehicleClass: 1}
	require.NoError(t, r.Validate())

	r.CoarseVehicleClass = -1
	assert.Error(t, r.Validate())
}
