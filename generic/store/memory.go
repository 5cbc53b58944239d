// Package store provides RunStore implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/fleet-ledger/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	runs     map[string]generic.Run
	mappings []mappingVersion
	ledgers  map[string]*generic.Ledger
	unkeyed  []*generic.Ledger // exports without a document number
}

type mappingVersion struct {
	runID string
	rows  []generic.AssetMapping
}

func NewMemory() *Memory {
	return &Memory{
		runs:    make(map[string]generic.Run),
		ledgers: make(map[string]*generic.Ledger),
	}
}

func (m *Memory) SaveRun(_ context.Context, run generic.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (*generic.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, generic.ErrRunNotFound
	}
	return &run, nil
}

func (m *Memory) ListRuns(_ context.Context, kind generic.RunKind) ([]generic.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Run
	for _, run := range m.runs {
		if kind == "" || run.Kind == kind {
			result = append(result, run)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// SaveMapping appends a new version. Append-only.
func (m *Memory) SaveMapping(_ context.Context, runID string, rows []generic.AssetMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]generic.AssetMapping, len(rows))
	copy(cp, rows)
	m.mappings = append(m.mappings, mappingVersion{runID: runID, rows: cp})
	return nil
}

func (m *Memory) LatestMapping(_ context.Context) ([]generic.AssetMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.mappings) == 0 {
		return nil, generic.ErrMappingNotFound
	}
	latest := m.mappings[len(m.mappings)-1].rows
	result := make([]generic.AssetMapping, len(latest))
	copy(result, latest)
	return result, nil
}

// AppendLedger stores run and ledger together.
func (m *Memory) AppendLedger(_ context.Context, run generic.Run, ledger *generic.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ledger.DocumentNumber == "" {
		m.unkeyed = append(m.unkeyed, ledger)
		m.runs[run.ID] = run
		return nil
	}
	if _, exists := m.ledgers[ledger.DocumentNumber]; exists {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.ledgers[ledger.DocumentNumber] = ledger
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) LoadLedger(_ context.Context, documentNumber string) (*generic.Ledger, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ledger, ok := m.ledgers[documentNumber]
	if !ok {
		return nil, generic.ErrLedgerNotFound
	}
	return ledger, nil
}

var _ generic.RunStore = (*Memory)(nil)
