package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-ledger/generic"
	"github.com/warp/fleet-ledger/generic/store"
)

func TestMemory_RunsNewestFirst(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2025, 3, 31, 9, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveRun(ctx, generic.Run{ID: "a", Kind: generic.RunReconciliation, CreatedAt: base}))
	require.NoError(t, m.SaveRun(ctx, generic.Run{ID: "b", Kind: generic.RunAllocation, CreatedAt: base.Add(time.Hour)}))

	runs, err := m.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)

	runs, err = m.ListRuns(ctx, generic.RunReconciliation)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	_, err = m.GetRun(ctx, "zzz")
	assert.ErrorIs(t, err, generic.ErrRunNotFound)
}

func TestMemory_MappingVersions(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	_, err := m.LatestMapping(ctx)
	assert.ErrorIs(t, err, generic.ErrMappingNotFound)

	rows := []generic.AssetMapping{{AssetID: "AB1", CostCenter: generic.CostCenterFromInt(100)}}
	require.NoError(t, m.SaveMapping(ctx, "r1", rows))
	require.NoError(t, m.SaveMapping(ctx, "r2", []generic.AssetMapping{{AssetID: "CD2"}}))

	// Caller mutation after save must not leak in
	rows[0].AssetID = "XX"

	got, err := m.LatestMapping(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CD2", got[0].AssetID)
}

func TestMemory_LedgerIdempotency(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	run := func(id string) generic.Run { return generic.Run{ID: id, Kind: generic.RunAllocation} }

	require.NoError(t, m.AppendLedger(ctx, run("r1"), &generic.Ledger{DocumentNumber: "25/1"}))
	assert.ErrorIs(t, m.AppendLedger(ctx, run("r2"), &generic.Ledger{DocumentNumber: "25/1"}), generic.ErrDuplicateIdempotencyKey)
	require.NoError(t, m.AppendLedger(ctx, run("r3"), &generic.Ledger{}))
	require.NoError(t, m.AppendLedger(ctx, run("r4"), &generic.Ledger{}))

	_, err := m.GetRun(ctx, "r1")
	require.NoError(t, err)
	_, err = m.GetRun(ctx, "r2")
	assert.ErrorIs(t, err, generic.ErrRunNotFound, "refused export stores no run")

	got, err := m.LoadLedger(ctx, "25/1")
	require.NoError(t, err)
	assert.Equal(t, "25/1", got.DocumentNumber)

	_, err = m.LoadLedger(ctx, "25/2")
	assert.ErrorIs(t, err, generic.ErrLedgerNotFound)
}
