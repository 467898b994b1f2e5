//go:build integration

package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	v1 "github.com/trajstore-lab/trajstore/internal/api/v1"
	"github.com/trajstore-lab/trajstore/internal/core/storage/mongodb"
	"github.com/trajstore-lab/trajstore/internal/schema"
)

const (
	fragmentsColl  = "raw_trajectories"
	stitchedColl   = "stitched_trajectories"
	reconciledColl = "reconciled_trajectories"
)

// connect opens a client on a database private to the test and drops it on cleanup.
func connect(t *testing.T) *mongodb.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := strings.NewReplacer("/", "_", " ", "_").Replace(fmt.Sprintf("it_%s_%d", t.Name(), time.Now().UnixNano()))
	if len(db) > 60 {
		db = db[len(db)-60:]
	}
	client, err := mongodb.Connect(ctx, mongodb.Options{
		URI:             mongoURI,
		Database:        db,
		ConfigurationID: "integration",
		ComputeNodeID:   7,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		names, _ := client.ListCollectionNames(ctx)
		var drop []string
		for _, n := range names {
			if n != "__METADATA__" {
				drop = append(drop, n)
			}
		}
		_ = client.DropCollections(ctx, drop)
		_ = client.Close(ctx)
	})
	return client
}

func applySchemas(t *testing.T, client *mongodb.Client) *schema.Registry {
	t.Helper()
	registry, err := schema.LoadDir("../../schemas")
	require.NoError(t, err)
	require.NoError(t, registry.Apply(context.Background(), client))
	return registry
}

// trajectory samples x = x0 + dir*speed*t at every 0.04 s tick from t0 for n samples.
func trajectory(dir int, t0, x0, speed float64, n int) *v1.ReconciledTrajectory {
	track := v1.Track{Direction: dir, Length: []float64{4.5}, Width: []float64{1.8}}
	for i := 0; i < n; i++ {
		ts := t0 + float64(i)*0.04
		track.Timestamp = append(track.Timestamp, ts)
		track.XPosition = append(track.XPosition, x0+float64(dir)*speed*float64(i)*0.04)
		track.YPosition = append(track.YPosition, 12)
	}
	return &v1.ReconciledTrajectory{CoarseVehicleClass: 1, Track: track}
}
