package tracker

import (
	"sync"

	"github.com/LdDl/mot-go/mot"
	"github.com/google/uuid"
)

// IDGenerator is a struct to hold a counter for generating the next
// incremental ID number
type IDGenerator struct {
	id int64
	sync.Mutex
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next incremental number
func (id *IDGenerator) GetNext() int64 {
	id.Lock()
	defer id.Unlock()
	id.id++
	return id.id
}

// identityMap assigns small stable integer identities to the UUID keyed
// tracks of the backend.  Identities are allocated in first seen order
// starting at one
type identityMap struct {
	gen *IDGenerator
	ids map[uuid.UUID]int64
}

func newIdentityMap() *identityMap {
	return &identityMap{
		gen: NewIDGenerator(),
		ids: make(map[uuid.UUID]int64),
	}
}

// identityOf returns the integer identity for a track, allocating one on
// first sight
func (m *identityMap) identityOf(trackID uuid.UUID) int64 {

	if id, exists := m.ids[trackID]; exists {
		return id
	}

	id := m.gen.GetNext()
	m.ids[trackID] = id

	return id
}

// prune drops identities whose track the backend no longer maintains
func (m *identityMap) prune(live map[uuid.UUID]*mot.SimpleBlob) {

	for trackID := range m.ids {
		if _, exists := live[trackID]; !exists {
			delete(m.ids, trackID)
		}
	}
}
