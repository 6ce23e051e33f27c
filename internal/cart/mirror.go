package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/aromahaus/storefront-client/pkg/types"
)

// Mirror is the read model of the authenticated server cart. It is only ever
// replaced wholesale with a fresh server snapshot; no operation mutates it
// optimistically, so it can never drift ahead of the backend.
type Mirror struct {
	mu    sync.RWMutex
	lines []types.CartLine
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{}
}

// SetFromServer replaces the mirror contents with a server snapshot.
func (m *Mirror) SetFromServer(lines []types.CartLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = copyLines(lines)
}

// Clear empties the mirror.
func (m *Mirror) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = nil
}

// Lines returns a copy of the mirrored server cart.
func (m *Mirror) Lines() []types.CartLine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyLines(m.lines)
}

// Total returns the sum of all mirrored line totals.
func (m *Mirror) Total() decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sumLines(m.lines)
}

// ItemCount returns the sum of all mirrored line quantities.
func (m *Mirror) ItemCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return countItems(m.lines)
}
