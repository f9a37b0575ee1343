package book

import (
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// Level is a single price level.
type Level struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// LevelMap is an ordered price -> volume map for one side of the book.
// Iteration order is best price first.
type LevelMap struct {
	side Side
	tree *btree.BTreeG[Level]
}

// NewLevelMap creates an empty map ordered for the given side.
func NewLevelMap(side Side) *LevelMap {
	return &LevelMap{
		side: side,
		tree: btree.NewBTreeG(func(a, b Level) bool {
			return side.Better(a.Price, b.Price)
		}),
	}
}

// Side returns the side this map is ordered for.
func (m *LevelMap) Side() Side {
	return m.side
}

// Set inserts or overwrites the level at price.
func (m *LevelMap) Set(price, volume decimal.Decimal) {
	m.tree.Set(Level{Price: price, Volume: volume})
}

// Remove deletes the level at price. Returns ErrLevelNotFound if absent.
func (m *LevelMap) Remove(price decimal.Decimal) error {
	if _, ok := m.tree.Delete(Level{Price: price}); !ok {
		return ErrLevelNotFound
	}
	return nil
}

// Get returns the level at price.
func (m *LevelMap) Get(price decimal.Decimal) (Level, bool) {
	return m.tree.Get(Level{Price: price})
}

// Best returns the first level in side order. ok is false when the map is empty.
func (m *LevelMap) Best() (lvl Level, ok bool) {
	return m.tree.Min()
}

// Len returns the number of levels.
func (m *LevelMap) Len() int {
	return m.tree.Len()
}

// Truncate drops levels beyond the first n in side order and returns how
// many were dropped. n <= 0 keeps everything.
func (m *LevelMap) Truncate(n int) int {
	if n <= 0 {
		return 0
	}
	dropped := 0
	for m.tree.Len() > n {
		m.tree.PopMax()
		dropped++
	}
	return dropped
}

// Levels returns up to n levels in side order. n <= 0 returns all levels.
func (m *LevelMap) Levels(n int) []Level {
	size := m.tree.Len()
	if n > 0 && n < size {
		size = n
	}
	out := make([]Level, 0, size)
	m.tree.Scan(func(lvl Level) bool {
		out = append(out, lvl)
		return len(out) < size
	})
	return out
}

// Clone returns an independent copy. The underlying tree is copy-on-write,
// so cloning is cheap until one of the copies is mutated.
func (m *LevelMap) Clone() *LevelMap {
	return &LevelMap{side: m.side, tree: m.tree.Copy()}
}
