package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolver/internal/evo"
	"evolver/internal/problem"
	"evolver/pkg/evolver"
)

func TestRunRequiresKnownCommand(t *testing.T) {
	err := run(context.Background(), nil, &bytes.Buffer{})
	require.ErrorContains(t, err, "missing command")
	err = run(context.Background(), []string{"lineage"}, &bytes.Buffer{})
	require.ErrorContains(t, err, "unknown command: lineage")
}

func TestRunCommandEmitsJSONSummary(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{
		"run",
		"--store", "memory",
		"--problem", "onemax",
		"--size", "12",
		"--length", "16",
		"--epochs", "4",
		"--seed", "3",
		"--workers", "2",
		"--crossover", "uniform,one_point",
		"--crossover-policy", "adaptive_pursuit",
		"--json",
	}, &out)
	require.NoError(t, err)

	var summary struct {
		RunID         string                    `json:"run_id"`
		Problem       string                    `json:"problem"`
		StopReason    string                    `json:"stop_reason"`
		Epochs        int                       `json:"epochs"`
		Usage         map[string]map[string]int `json:"usage"`
		Probabilities map[string][]float64      `json:"probabilities"`
		Estimates     map[string][]float64      `json:"estimates"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "onemax", summary.Problem)
	assert.Equal(t, evo.StopTerminated, summary.StopReason)
	assert.Equal(t, 4, summary.Epochs)
	crossovers := summary.Usage[evo.FamilyCrossover]
	assert.Equal(t, 4, crossovers["uniform"]+crossovers["one_point"])
	assert.Len(t, summary.Probabilities[evo.FamilyCrossover], 2)
	assert.Len(t, summary.Estimates[evo.FamilyCrossover], 2)
	assert.NotContains(t, summary.Estimates, evo.FamilyParentSelection)
}

func TestRunCommandPrintsProgress(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{
		"run", "--store", "memory", "--problem", "sphere", "--size", "8", "--epochs", "2", "--progress",
	}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[0], "epoch=0 "))
	assert.True(t, strings.HasPrefix(lines[2], "epoch=2 "))
	assert.Contains(t, lines[3], "problem=sphere")
}

func TestRunCommandLoadsTOMLConfigAndAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
problem = "knapsack"
size = 10
length = 12
epochs = 50
seed = 9

[replacement]
policy = "round_robin"
operators = [{ name = "elitist", elite_percentage = 0.2 }, { name = "worst" }]
`), 0o644))

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"run", "--store", "memory", "--config", path, "--epochs", "3", "--json",
	}, &out)
	require.NoError(t, err)

	var summary struct {
		Problem string                    `json:"problem"`
		Epochs  int                       `json:"epochs"`
		Usage   map[string]map[string]int `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, "knapsack", summary.Problem)
	assert.Equal(t, 3, summary.Epochs)
	assert.Equal(t, 2, summary.Usage[evo.FamilyReplacement]["elitist"])
	assert.Equal(t, 1, summary.Usage[evo.FamilyReplacement]["worst"])
}

func TestLoadRunConfigRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("problem = \"onemax\"\ngenerations = 5\n"), 0o644))
	_, err := loadRunConfig(tomlPath)
	require.ErrorContains(t, err, "generations")

	jsonPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"problem":"onemax","scape":"xor"}`), 0o644))
	_, err = loadRunConfig(jsonPath)
	require.Error(t, err)

	okPath := filepath.Join(dir, "ok.json")
	require.NoError(t, os.WriteFile(okPath, []byte(`{"problem":"trap","length":8,"crossover":{"policy":"random"}}`), 0o644))
	cfg, err := loadRunConfig(okPath)
	require.NoError(t, err)
	assert.Equal(t, "trap", cfg.Problem)
	assert.Equal(t, 8, cfg.Length)
	assert.Equal(t, "random", cfg.Crossover.Policy)
}

func TestRunCommandRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer

	require.ErrorContains(t, run(ctx, []string{"run", "--store", "memory"}, &out), "requires --problem")
	require.Error(t, run(ctx, []string{"run", "--store", "memory", "--problem", "nope"}, &out))
	require.Error(t, run(ctx, []string{"run", "--store", "memory", "--problem", "onemax", "--log-level", "loud"}, &out))
	require.ErrorIs(t, run(ctx, []string{
		"run", "--store", "memory", "--problem", "onemax", "--selection", "tournament:abc",
	}, &out), evo.ErrConfiguration)
	require.ErrorIs(t, run(ctx, []string{
		"run", "--store", "memory", "--problem", "flowshop", "--crossover", "one_point",
	}, &out), problem.ErrIncompatible)
}

func TestRunsOnEmptyStore(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"runs", "--store", "memory"}, &out))
	assert.Equal(t, "no runs found\n", out.String())

	require.ErrorContains(t, run(context.Background(), []string{"runs", "--store", "memory", "--limit", "0"}, &out), "limit")
	require.Error(t, run(context.Background(), []string{"history", "--store", "memory", "--latest"}, &out))
	require.Error(t, run(context.Background(), []string{"snapshot", "--store", "memory", "--top", "-1"}, &out))
	require.ErrorIs(t, run(context.Background(), []string{"export", "--store", "memory", "--latest"}, &out), evolver.ErrRunNotFound)
	require.ErrorIs(t, run(context.Background(), []string{"delete", "--store", "memory", "--run-id", "missing"}, &out), evolver.ErrRunNotFound)
}

func TestProblemsCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"problems"}, &out))
	for _, name := range []string{"onemax", "trap", "sphere", "rastrigin", "knapsack", "flowshop"} {
		assert.Contains(t, out.String(), name)
	}

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"problems", "--json"}, &out))
	var infos []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &infos))
	assert.Len(t, infos, 6)
}

func TestRunFlagsKeepExplicitZeroRates(t *testing.T) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	values := addRunFlags(fs)
	require.NoError(t, fs.Parse([]string{"--mutation-rate", "0", "--crossover-rate", "0"}))
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var cfg runConfig
	require.NoError(t, values.apply(&cfg, set))
	require.NotNil(t, cfg.MutationRate)
	require.NotNil(t, cfg.CrossoverRate)
	assert.Zero(t, *cfg.MutationRate)
	assert.Zero(t, *cfg.CrossoverRate)

	var unset runConfig
	require.NoError(t, values.apply(&unset, map[string]bool{}))
	assert.Nil(t, unset.MutationRate)
	assert.Nil(t, unset.CrossoverRate)
}
