//go:build sqlite

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteRunThenInspect(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "evolver.db")
	store := []string{"--store", "sqlite", "--db-path", dbPath}

	var out bytes.Buffer
	args := append([]string{"run"}, store...)
	args = append(args, "--problem", "onemax", "--size", "10", "--epochs", "3", "--run-id", "run-1", "--json")
	require.NoError(t, run(ctx, args, &out))

	out.Reset()
	require.NoError(t, run(ctx, append([]string{"runs"}, store...), &out))
	assert.True(t, strings.HasPrefix(out.String(), "run_id=run-1 "))

	out.Reset()
	require.NoError(t, run(ctx, append(append([]string{"history"}, store...), "--latest", "--json"), &out))
	var history []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &history))
	assert.Len(t, history, 4)

	out.Reset()
	require.NoError(t, run(ctx, append(append([]string{"snapshot"}, store...), "--run-id", "run-1", "--top", "3"), &out))
	var snapshot struct {
		RunID   string `json:"run_id"`
		Epoch   int    `json:"epoch"`
		Members []struct {
			Fitness float64 `json:"fitness"`
		} `json:"members"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &snapshot))
	assert.Equal(t, "run-1", snapshot.RunID)
	assert.Equal(t, 3, snapshot.Epoch)
	require.Len(t, snapshot.Members, 3)
	assert.GreaterOrEqual(t, snapshot.Members[0].Fitness, snapshot.Members[2].Fitness)

	outDir := filepath.Join(t.TempDir(), "exports")
	out.Reset()
	require.NoError(t, run(ctx, append(append([]string{"export"}, store...), "--latest", "--out", outDir), &out))
	rows, err := os.ReadFile(filepath.Join(outDir, "run-1", "history.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(rows)), "\n"), 5)

	out.Reset()
	require.NoError(t, run(ctx, append(append([]string{"delete"}, store...), "--run-id", "run-1"), &out))
	assert.Equal(t, "deleted run_id=run-1 problem=onemax\n", out.String())
	out.Reset()
	require.NoError(t, run(ctx, append([]string{"runs"}, store...), &out))
	assert.Equal(t, "no runs found\n", out.String())
}
