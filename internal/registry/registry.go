// Package registry tracks the adaptors the vault trusts and the positions
// each adaptor may operate on. Registration is append-only: a position key,
// once bound to an adaptor and descriptor, cannot be rebound.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/openvault/adaptors/internal/adaptor"
	"github.com/openvault/adaptors/internal/types"
)

var (
	ErrAdaptorUnknown    = errors.New("adaptor is not registered")
	ErrAdaptorDuplicate  = errors.New("adaptor is already registered")
	ErrPositionUnknown   = errors.New("position is not registered")
	ErrPositionImmutable = errors.New("position is already registered and cannot be changed")
)

type positionEntry struct {
	adaptorID  types.AdaptorID
	descriptor types.Descriptor
}

// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	adaptors  map[types.AdaptorID]adaptor.StrategistAdaptor
	positions map[types.PositionKey]positionEntry
}

func New() *Registry {
	return &Registry{
		adaptors:  make(map[types.AdaptorID]adaptor.StrategistAdaptor),
		positions: make(map[types.PositionKey]positionEntry),
	}
}

// RegisterAdaptor adds an adaptor under its own identifier. Registering the
// same identifier twice fails.
func (r *Registry) RegisterAdaptor(a adaptor.StrategistAdaptor) error {
	if a == nil {
		return errors.New("adaptor cannot be nil")
	}
	id := a.Identifier()
	if id == "" {
		return errors.New("adaptor identifier cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adaptors[id]; exists {
		return errors.Join(ErrAdaptorDuplicate, fmt.Errorf("identifier %s", id))
	}
	r.adaptors[id] = a
	return nil
}

// RegisterPosition binds a position key to an adaptor and its descriptor.
// The adaptor must already be registered. A key that is already bound cannot
// be bound again, not even to identical data; tearing down and re-adding a
// position is a new key.
func (r *Registry) RegisterPosition(key types.PositionKey, adaptorID types.AdaptorID, desc types.Descriptor) error {
	if key == "" {
		return errors.New("position key cannot be empty")
	}
	if desc == nil {
		return errors.New("descriptor cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.positions[key]; exists {
		return errors.Join(ErrPositionImmutable, fmt.Errorf("key %s", key))
	}
	if _, exists := r.adaptors[adaptorID]; !exists {
		return errors.Join(ErrAdaptorUnknown, fmt.Errorf("identifier %s", adaptorID))
	}
	r.positions[key] = positionEntry{adaptorID: adaptorID, descriptor: desc}
	return nil
}

// Adaptor returns the registered adaptor for the identifier.
func (r *Registry) Adaptor(id types.AdaptorID) (adaptor.StrategistAdaptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, exists := r.adaptors[id]
	if !exists {
		return nil, errors.Join(ErrAdaptorUnknown, fmt.Errorf("identifier %s", id))
	}
	return a, nil
}

// Position resolves a key to its adaptor and descriptor.
func (r *Registry) Position(key types.PositionKey) (adaptor.StrategistAdaptor, types.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, exists := r.positions[key]
	if !exists {
		return nil, nil, errors.Join(ErrPositionUnknown, fmt.Errorf("key %s", key))
	}
	a, exists := r.adaptors[entry.adaptorID]
	if !exists {
		return nil, nil, errors.Join(ErrAdaptorUnknown, fmt.Errorf("identifier %s", entry.adaptorID))
	}
	return a, entry.descriptor, nil
}

// PositionKeys returns the registered keys in sorted order.
func (r *Registry) PositionKeys() []types.PositionKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]types.PositionKey, 0, len(r.positions))
	for key := range r.positions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
