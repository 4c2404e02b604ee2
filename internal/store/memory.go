package store

import (
	"context"
	"maps"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps documents in process memory in insertion order.
type MemoryStore struct {
	mu       sync.RWMutex
	plants   []Plant
	harvests []Harvest
	closed   bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) ListPlants(ctx context.Context) ([]Plant, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Plant, 0, len(m.plants))
	for _, p := range m.plants {
		out = append(out, clonePlant(p))
	}
	return out, nil
}

func (m *MemoryStore) GetPlant(ctx context.Context, id primitive.ObjectID) (*Plant, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	p := clonePlant(m.plants[i])
	return &p, nil
}

func (m *MemoryStore) CreatePlant(ctx context.Context, p Plant) (primitive.ObjectID, error) {
	if err := m.check(ctx); err != nil {
		return primitive.NilObjectID, err
	}
	p = clonePlant(p)
	p.ID = primitive.NewObjectID()

	m.mu.Lock()
	m.plants = append(m.plants, p)
	m.mu.Unlock()
	return p.ID, nil
}

func (m *MemoryStore) UpdatePlant(ctx context.Context, id primitive.ObjectID, fields PlantFields) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	p := &m.plants[i]
	p.Name = fields.Name
	p.Variety = fields.Variety
	p.PhotoURL = fields.PhotoURL
	p.DatePlanted = fields.DatePlanted
	return nil
}

func (m *MemoryStore) DeletePlant(ctx context.Context, id primitive.ObjectID) (DeleteResult, error) {
	var res DeleteResult
	if err := m.check(ctx); err != nil {
		return res, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexOf(id); i >= 0 {
		m.plants = append(m.plants[:i], m.plants[i+1:]...)
		res.Plants = 1
	}

	ref := PlantRef(id)
	kept := m.harvests[:0]
	for _, h := range m.harvests {
		if h.PlantID == ref {
			res.Harvests++
			continue
		}
		kept = append(kept, h)
	}
	m.harvests = kept
	return res, nil
}

func (m *MemoryStore) ListHarvests(ctx context.Context, plantID string) ([]Harvest, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Harvest, 0)
	for _, h := range m.harvests {
		if h.PlantID == plantID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateHarvest(ctx context.Context, h Harvest) (primitive.ObjectID, error) {
	if err := m.check(ctx); err != nil {
		return primitive.NilObjectID, err
	}
	h.ID = primitive.NewObjectID()

	m.mu.Lock()
	m.harvests = append(m.harvests, h)
	m.mu.Unlock()
	return h.ID, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return m.check(ctx)
}

// Close marks the store unavailable; later calls fail with ErrUnavailable.
func (m *MemoryStore) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrUnavailable
	}
	return nil
}

// indexOf must be called with mu held.
func (m *MemoryStore) indexOf(id primitive.ObjectID) int {
	for i := range m.plants {
		if m.plants[i].ID == id {
			return i
		}
	}
	return -1
}

func clonePlant(p Plant) Plant {
	if p.Extra != nil {
		p.Extra = maps.Clone(p.Extra)
	}
	return p
}
