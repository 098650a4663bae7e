package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriodAcceptsDatesAndTimestamps(t *testing.T) {
	start, end, err := parsePeriod("2026-01-01", "2026-02-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestParsePeriodRejectsInvertedRange(t *testing.T) {
	_, _, err := parsePeriod("2026-02-01", "2026-01-01")
	require.Error(t, err)

	_, _, err = parsePeriod("yesterday", "2026-01-01")
	require.ErrorContains(t, err, "--from")
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"migrate", "version"},
		{"royalty", "run", "create"},
		{"royalty", "run", "calculate"},
		{"royalty", "run", "lock"},
		{"jobs", "health"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestCalculateRequiresRunID(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"royalty", "run", "calculate"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
