// Package store keeps trained models in memory for the HTTP server.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FlavioCFOliveira/mlpnet/internal/net"
)

// ErrNotFound is returned for unknown model ids.
var ErrNotFound = errors.New("model not found")

// Model is a trained network with the parameters that produced it.
type Model struct {
	ID           string
	Network      *net.Network
	Example      string
	Epochs       uint32
	LearningRate float64
	FinalLoss    float64
	CreatedAt    time.Time
}

// Store maps model ids to models. It is safe for concurrent use; networks are
// cloned on the way in and out so callers never share state.
type Store struct {
	mu     sync.RWMutex
	models map[string]Model
}

func New() *Store {
	return &Store{models: make(map[string]Model)}
}

// Put stores m under a new random id and returns the id. m.ID is ignored.
func (s *Store) Put(m Model) string {
	m.ID = uuid.NewString()
	m.Network = m.Network.Clone()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	s.mu.Lock()
	s.models[m.ID] = m
	s.mu.Unlock()
	return m.ID
}

// Get returns a copy of the model stored under id.
func (s *Store) Get(id string) (Model, error) {
	s.mu.RLock()
	m, ok := s.models[id]
	s.mu.RUnlock()
	if !ok {
		return Model{}, ErrNotFound
	}
	m.Network = m.Network.Clone()
	return m, nil
}

// Delete removes id. Unknown ids report ErrNotFound.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[id]; !ok {
		return ErrNotFound
	}
	delete(s.models, id)
	return nil
}

// IDs returns the stored ids, oldest first.
func (s *Store) IDs() []string {
	s.mu.RLock()
	models := make([]Model, 0, len(s.models))
	for _, m := range s.models {
		models = append(models, m)
	}
	s.mu.RUnlock()

	sort.Slice(models, func(i, j int) bool {
		if models[i].CreatedAt.Equal(models[j].CreatedAt) {
			return models[i].ID < models[j].ID
		}
		return models[i].CreatedAt.Before(models[j].CreatedAt)
	})
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	return ids
}

// Len is the number of stored models.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}
