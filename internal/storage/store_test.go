package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evolver/internal/model"
)

func sampleRun(id string, created time.Time) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		Problem:         "onemax",
		Seed:            7,
		InitialSize:     20,
		Epochs:          3,
		StopReason:      "terminated",
		BestID:          "c1",
		BestFitness:     12,
		CreatedAtUTC:    created,
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))

	older := sampleRun("run-a", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := sampleRun("run-b", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveRun(ctx, older))
	require.NoError(t, store.SaveRun(ctx, newer))

	got, ok, err := store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, older.BestFitness, got.BestFitness)
	assert.True(t, older.CreatedAtUTC.Equal(got.CreatedAtUTC))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)

	_, ok, err = store.GetRun(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	history := []model.EpochStats{
		{Epoch: 0, Size: 20, BestFitness: 10},
		{Epoch: 1, Size: 20, BestFitness: 11, Selector: "tournament", Reward: 0.1},
	}
	require.NoError(t, store.SaveEpochStats(ctx, "run-a", history))
	loaded, ok, err := store.GetEpochStats(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, history, loaded)

	snapshot := model.PopulationSnapshot{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-a",
		Epoch:           3,
		Members: []model.MemberRecord{
			{ID: "c1", Age: 2, Born: 1, Fitness: 12, Genes: json.RawMessage(`[true,false]`)},
		},
	}
	require.NoError(t, store.SaveSnapshot(ctx, snapshot))
	loadedSnapshot, ok, err := store.GetSnapshot(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, loadedSnapshot.Epoch)
	require.Len(t, loadedSnapshot.Members, 1)
	assert.JSONEq(t, `[true,false]`, string(loadedSnapshot.Members[0].Genes))

	stale := snapshot
	stale.SchemaVersion = CurrentSchemaVersion + 1
	require.ErrorIs(t, store.SaveSnapshot(ctx, stale), ErrVersionMismatch)

	require.NoError(t, store.DeleteRun(ctx, "run-a"))
	_, ok, err = store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.GetEpochStats(ctx, "run-a")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.GetSnapshot(ctx, "run-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	require.Error(t, store.SaveRun(context.Background(), sampleRun("x", time.Now())))
}

func TestMemoryStoreIsolatesSavedSlices(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Init(ctx))

	history := []model.EpochStats{{Epoch: 0, BestFitness: 1}}
	require.NoError(t, store.SaveEpochStats(ctx, "r", history))
	history[0].BestFitness = 99

	loaded, _, err := store.GetEpochStats(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, 1.0, loaded[0].BestFitness)
}

func TestCodecRejectsForeignVersions(t *testing.T) {
	run := sampleRun("r", time.Now().UTC())
	data, err := EncodeRun(run)
	require.NoError(t, err)
	decoded, err := DecodeRun(data)
	require.NoError(t, err)
	assert.Equal(t, run.ID, decoded.ID)

	run.CodecVersion = 9
	data, err = EncodeRun(run)
	require.NoError(t, err)
	_, err = DecodeRun(data)
	require.ErrorIs(t, err, ErrVersionMismatch)

	_, err = DecodeSnapshot([]byte(`{"schema_version":0,"codec_version":1}`))
	require.ErrorIs(t, err, ErrVersionMismatch)
	_, err = DecodeEpochStats([]byte(`not json`))
	require.Error(t, err)
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
	require.NoError(t, CloseIfSupported(store))

	_, err = NewStore("unknown", "")
	require.ErrorIs(t, err, ErrUnsupportedStore)
}
