//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"github.com/trajstore-lab/trajstore/internal/core/storage/mongodb"
	"github.com/trajstore-lab/trajstore/internal/ingestion"
	"github.com/trajstore-lab/trajstore/internal/metrics"
	"github.com/trajstore-lab/trajstore/internal/projection"
	"github.com/trajstore-lab/trajstore/internal/server"
)

func startAPI(t *testing.T) *httptest.Server {
	t.Helper()
	client := connect(t)
	registry := applySchemas(t, client)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	srv := server.New(":0", "release", map[string]server.HealthChecker{"mongo": client}, reg)
	ingestion.NewService(
		client.Records(fragmentsColl, stitchedColl, reconciledColl),
		registry,
		ingestion.Collections{Fragments: fragmentsColl, Stitched: stitchedColl, Reconciled: reconciledColl},
		m,
		1,
	).RegisterRoutes(srv.Engine)
	projection.NewService(client, nil, mongodb.SummaryIndexFields, 100, m).RegisterRoutes(srv.Engine)

	ts := httptest.NewServer(srv.Engine)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestAPI_WriteThenReadRange(t *testing.T) {
	ts := startAPI(t)

	for i := 0; i < 3; i++ {
		resp := postJSON(t, ts.URL+"/v1/reconciled", map[string]interface{}{
			"timestamp":            []float64{float64(i), float64(i) + 0.04},
			"x_position":           []float64{10, 11},
			"y_position":           []float64{5, 5},
			"length":               []float64{4},
			"width":                []float64{2},
			"direction":            1,
			"coarse_vehicle_class": 2,
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := postJSON(t, ts.URL+"/v1/reconciled", map[string]interface{}{"timestamp": []float64{1}})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/v1/collections/" + reconciledColl + "/range?parameter=first_timestamp&gte=0&lte=2&increment=1&eq.coarse_vehicle_class=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out projection.RangeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Batches, 2)
	assert.Len(t, out.Batches[0].Documents, 1)
	assert.Len(t, out.Batches[1].Documents, 2)
	assert.Equal(t, 3, out.DocumentsReturned)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Batches[0].Documents[0], &doc))
	assert.Equal(t, "integration", doc["configuration_id"])
	assert.EqualValues(t, 0, doc["first_timestamp"])
}

func TestAPI_StatsHealthAndMetrics(t *testing.T) {
	ts := startAPI(t)

	resp := postJSON(t, ts.URL+"/v1/reconciled", map[string]interface{}{
		"timestamp":            []float64{3, 3.04},
		"x_position":           []float64{50, 49},
		"y_position":           []float64{5, 5},
		"length":               []float64{4},
		"width":                []float64{2},
		"direction":            -1,
		"coarse_vehicle_class": 1,
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/v1/collections/" + reconciledColl + "/stats")
	require.NoError(t, err)
	var stats storage.CollectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, int64(1), stats.Count)
	assert.Equal(t, storage.FieldRange{Min: 50, Max: 50}, stats.Ranges["starting_x"])

	resp, err = http.Get(ts.URL + "/v1/collections/nope/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	resp.Body.Close()
	assert.Contains(t, body.String(), `trajstore_records_ingested_total{kind="reconciled",outcome="ok"} 1`)
}
