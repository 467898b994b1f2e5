package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trajstore-lab/trajstore/internal/core/config"
	"github.com/trajstore-lab/trajstore/internal/transform"
)

func TestRun_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no command", args: nil, wantErr: "a command is required"},
		{name: "unknown command", args: []string{"compact"}, wantErr: "unknown command: compact"},
		{name: "missing config file", args: []string{"-config", filepath.Join(t.TempDir(), "nope.yaml"), "serve"}, wantErr: "load config"},
		{name: "transform without source", args: []string{"transform"}, wantErr: "-source"},
		{name: "export without collection", args: []string{"export", "-out", "x.parquet"}, wantErr: "-collection is required"},
		{name: "export without out", args: []string{"export", "-collection", "c"}, wantErr: "-out is required"},
		{name: "collections without subcommand", args: []string{"collections"}, wantErr: "usage"},
		{name: "unknown collections subcommand", args: []string{"collections", "rename"}, wantErr: "unknown collections command"},
		{name: "drop without names", args: []string{"collections", "drop"}, wantErr: "at least one collection"},
		{name: "bad float flag", args: []string{"transform", "-source", "raw", "-lower", "abc"}, wantErr: "invalid value"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := run(tc.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})

	logger.Info("[Test] hidden")
	logger.Warn("[Test] shown", "key", "value")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "[Test] shown", line["msg"])
	assert.Equal(t, "value", line["key"])
}

func TestOptionalFloat(t *testing.T) {
	var f optionalFloat
	assert.Equal(t, "", f.String())
	assert.Nil(t, closedBound(f.value))

	require.NoError(t, f.Set("2.5"))
	require.NotNil(t, f.value)
	assert.Equal(t, "2.5", f.String())

	b := closedBound(f.value)
	require.NotNil(t, b)
	assert.Equal(t, 2.5, b.Value)
	assert.True(t, b.Closed)
}

func TestTransformOptions(t *testing.T) {
	opts := transformOptions(config.TransformConfig{
		Source:         "raw",
		Directions:     []int{1},
		PartitionKey:   "first_timestamp",
		Increment:      10,
		Chunks:         3,
		Period:         0.04,
		StaleThreshold: 7,
		LatePolicy:     "write",
		BatchSize:      10,
		WriterCount:    2,
		MaxRetries:     1,
		RetryInterval:  time.Second,
		MaxSamples:     500,
	})

	assert.Equal(t, "raw", opts.SourceCollection)
	assert.Equal(t, []int{1}, opts.Directions)
	assert.Equal(t, 10.0, opts.ReadIncrement)
	assert.Equal(t, 3, opts.Chunks)
	assert.Equal(t, int64(7), opts.StaleThreshold)
	assert.Equal(t, transform.LateWrite, opts.LatePolicy)
	assert.Equal(t, time.Second, opts.RetryInterval)
	assert.Equal(t, 500, opts.MaxSamples)
}
