// Package refmodel holds the golden content the device is checked against.
package refmodel

import (
	"log"
	"math/rand"
)

type entry struct {
	key   uint32
	value uint32
}

// Model is an insertion-ordered key-value map that can pick a uniformly
// random resident. Removal swaps the last entry into the hole, so the order
// is only preserved until the first removal.
type Model struct {
	entries []entry
	index   map[uint32]int
}

// New creates an empty model.
func New() *Model {
	return &Model{
		index: make(map[uint32]int),
	}
}

// Insert adds a key that must not be resident.
func (m *Model) Insert(key, value uint32) {
	if _, found := m.index[key]; found {
		log.Panicf("key %d is already resident", key)
	}

	m.index[key] = len(m.entries)
	m.entries = append(m.entries, entry{key: key, value: value})
}

// Get returns the value of the key and whether the key is resident.
func (m *Model) Get(key uint32) (uint32, bool) {
	i, found := m.index[key]
	if !found {
		return 0, false
	}

	return m.entries[i].value, true
}

// Contains tells if the key is resident.
func (m *Model) Contains(key uint32) bool {
	_, found := m.index[key]
	return found
}

// Set replaces the value of a resident key.
func (m *Model) Set(key, value uint32) {
	i, found := m.index[key]
	if !found {
		log.Panicf("key %d is not resident", key)
	}

	m.entries[i].value = value
}

// Remove deletes the key if it is resident.
func (m *Model) Remove(key uint32) {
	i, found := m.index[key]
	if !found {
		return
	}

	last := len(m.entries) - 1
	if i != last {
		m.entries[i] = m.entries[last]
		m.index[m.entries[i].key] = i
	}

	m.entries = m.entries[:last]
	delete(m.index, key)
}

// Len returns the number of resident keys.
func (m *Model) Len() int {
	return len(m.entries)
}

// PickRandom returns a uniformly chosen resident. It panics on an empty
// model.
func (m *Model) PickRandom(rng *rand.Rand) (key, value uint32) {
	if len(m.entries) == 0 {
		log.Panic("cannot pick from an empty model")
	}

	e := m.entries[rng.Intn(len(m.entries))]

	return e.key, e.value
}

// FreshKey draws random keys until it finds one that is not resident.
func (m *Model) FreshKey(rng *rand.Rand) uint32 {
	for {
		key := rng.Uint32()
		if !m.Contains(key) {
			return key
		}
	}
}
