// Package memory provides an in-memory table.Store (for testing/dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/parcelas/table"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// FailFunc lets tests inject a failure for an operation ("select", "insert",
// "update", "delete") on a table. Returning nil lets the call proceed.
type FailFunc func(op string, t table.Name) error

type Memory struct {
	mu     sync.RWMutex
	tables map[table.Name][]table.Row
	nextID map[table.Name]int64

	// Fail is consulted before every operation.
	Fail FailFunc
}

func NewMemory() *Memory {
	return &Memory{
		tables: make(map[table.Name][]table.Row),
		nextID: make(map[table.Name]int64),
	}
}

func (m *Memory) Select(_ context.Context, t table.Name, offset, limit int) ([]table.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectLocked(t, offset, limit)
}

func (m *Memory) Insert(_ context.Context, t table.Name, rows []table.Row) ([]table.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(t, rows)
}

func (m *Memory) Update(_ context.Context, t table.Name, patch table.Row, filter table.Filter) ([]table.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(t, patch, filter)
}

func (m *Memory) Delete(_ context.Context, t table.Name, filter table.Filter) ([]table.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(t, filter)
}

// Len returns the number of rows in t.
func (m *Memory) Len(t table.Name) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[t])
}

func (m *Memory) fail(op string, t table.Name) error {
	if m.Fail == nil {
		return nil
	}
	if err := m.Fail(op, t); err != nil {
		return &table.StoreError{Op: op, Table: t, Err: err}
	}
	return nil
}

func (m *Memory) selectLocked(t table.Name, offset, limit int) ([]table.Row, error) {
	if err := m.fail("select", t); err != nil {
		return nil, err
	}
	if err := table.ValidateColumns(t, nil); err != nil {
		return nil, err
	}
	rows := m.tables[t]
	sorted := make([]table.Row, len(rows))
	for i, r := range rows {
		sorted[i] = r.Clone()
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID() < sorted[j].ID() })

	if offset >= len(sorted) {
		return []table.Row{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(sorted) {
		end = len(sorted)
	}
	return sorted[offset:end], nil
}

func (m *Memory) insertLocked(t table.Name, rows []table.Row) ([]table.Row, error) {
	if err := m.fail("insert", t); err != nil {
		return nil, err
	}
	// Validate the whole batch before writing anything.
	for _, r := range rows {
		if err := table.ValidateColumns(t, r); err != nil {
			return nil, err
		}
	}

	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		stored := table.NormalizeRow(r)
		for _, col := range table.Columns[t] {
			if _, ok := stored[col]; !ok {
				stored[col] = nil
			}
		}
		if id := stored.ID(); id > 0 {
			if id > m.nextID[t] {
				m.nextID[t] = id
			}
		} else {
			m.nextID[t]++
			stored["id"] = m.nextID[t]
		}
		m.tables[t] = append(m.tables[t], stored)
		out = append(out, stored.Clone())
	}
	return out, nil
}

func (m *Memory) updateLocked(t table.Name, patch table.Row, filter table.Filter) ([]table.Row, error) {
	if err := m.fail("update", t); err != nil {
		return nil, err
	}
	if err := table.ValidateColumns(t, patch); err != nil {
		return nil, err
	}
	if err := table.ValidateColumns(t, filter); err != nil {
		return nil, err
	}

	var out []table.Row
	for _, r := range m.tables[t] {
		if !r.Matches(filter) {
			continue
		}
		for col, v := range patch {
			if col == "id" {
				continue
			}
			r[col] = table.Normalize(v)
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *Memory) deleteLocked(t table.Name, filter table.Filter) ([]table.Row, error) {
	if err := m.fail("delete", t); err != nil {
		return nil, err
	}
	if err := table.ValidateColumns(t, filter); err != nil {
		return nil, err
	}

	var kept, removed []table.Row
	for _, r := range m.tables[t] {
		if r.Matches(filter) {
			removed = append(removed, r.Clone())
		} else {
			kept = append(kept, r)
		}
	}
	m.tables[t] = kept
	return removed, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For the memory store this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(table.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	tables map[table.Name][]table.Row
	nextID map[table.Name]int64
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tables := make(map[table.Name][]table.Row, len(tm.tables))
	for t, rows := range tm.tables {
		copied := make([]table.Row, len(rows))
		for i, r := range rows {
			copied[i] = r.Clone()
		}
		tables[t] = copied
	}
	nextID := make(map[table.Name]int64, len(tm.nextID))
	for t, id := range tm.nextID {
		nextID[t] = id
	}
	return memorySnapshot{tables: tables, nextID: nextID}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.tables = s.tables
	tm.nextID = s.nextID
}

// txMemoryView runs against the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *Memory
}

func (v *txMemoryView) Select(_ context.Context, t table.Name, offset, limit int) ([]table.Row, error) {
	return v.parent.selectLocked(t, offset, limit)
}

func (v *txMemoryView) Insert(_ context.Context, t table.Name, rows []table.Row) ([]table.Row, error) {
	return v.parent.insertLocked(t, rows)
}

func (v *txMemoryView) Update(_ context.Context, t table.Name, patch table.Row, filter table.Filter) ([]table.Row, error) {
	return v.parent.updateLocked(t, patch, filter)
}

func (v *txMemoryView) Delete(_ context.Context, t table.Name, filter table.Filter) ([]table.Row, error) {
	return v.parent.deleteLocked(t, filter)
}
