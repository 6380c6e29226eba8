/*
Package state implements the ledger state store: set of units addressed by
unit ID. The engine accesses it only through the Store interface, so the
in-memory implementation here may be replaced by a persistent one.
*/
package state

import (
	"crypto"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	abhash "github.com/alphabill-org/alphabill-exchange/hash"
	"github.com/alphabill-org/alphabill-exchange/txsystem/components"
	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/types"
)

var ErrUnitNotFound = errors.New("unit not found")

type (
	// Change is a new value of a unit, nil Data means that the unit is deleted.
	Change struct {
		ID   types.UnitID
		Data types.UnitData
	}

	Store interface {
		// GetUnit returns copy of the unit data, ErrUnitNotFound is returned
		// when there is no such unit.
		GetUnit(id types.UnitID) (types.UnitData, error)
		// Apply applies all the changes or none of them.
		Apply(changes []Change) error
	}

	MemStore struct {
		mu    sync.RWMutex
		units map[string]types.UnitData
	}
)

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{units: make(map[string]types.UnitData)}
}

// NewUnitData returns empty unit data of the type encoded into the unit ID.
func NewUnitData(unitID types.UnitID) (types.UnitData, error) {
	switch {
	case unitID.HasType(types.ResourceUnitType):
		return &resources.ResourceData{}, nil
	case unitID.HasType(types.VaultUnitType):
		return &resources.VaultData{}, nil
	case unitID.HasType(types.ComponentUnitType):
		return &components.ComponentData{}, nil
	default:
		return nil, fmt.Errorf("unknown unit type in UnitID %s", unitID)
	}
}

func (s *MemStore) GetUnit(id types.UnitID) (types.UnitData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.units[string(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
	return u.Copy(), nil
}

func (s *MemStore) Apply(changes []Change) error {
	for i, c := range changes {
		if len(c.ID) != types.UnitIDLength {
			return fmt.Errorf("change %d: invalid unit ID length %d", i, len(c.ID))
		}
		if c.Data == nil {
			continue
		}
		// make sure data type matches the unit type so that snapshot can be loaded
		empty, err := NewUnitData(c.ID)
		if err != nil {
			return fmt.Errorf("change %d: %w", i, err)
		}
		if reflect.TypeOf(empty) != reflect.TypeOf(c.Data) {
			return fmt.Errorf("change %d: unit %s can't hold %T", i, c.ID, c.Data)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range changes {
		if c.Data == nil {
			delete(s.units, string(c.ID))
			continue
		}
		s.units[string(c.ID)] = c.Data.Copy()
	}
	return nil
}

// Len returns number of units in the store.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}

// UnitIDs returns IDs of all the units in ascending order.
func (s *MemStore) UnitIDs() []types.UnitID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedIDs()
}

func (s *MemStore) sortedIDs() []types.UnitID {
	ids := make([]types.UnitID, 0, len(s.units))
	for k := range s.units {
		ids = append(ids, types.UnitID(k))
	}
	slices.SortFunc(ids, func(a, b types.UnitID) int { return a.Compare(b) })
	return ids
}

/*
Root returns hash summarizing the whole state: units are hashed in the order
of their IDs. Empty store has zero hash.
*/
func (s *MemStore) Root() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.units) == 0 {
		return abhash.Zero256, nil
	}
	hasher := abhash.New(crypto.SHA256.New())
	for _, id := range s.sortedIDs() {
		hasher.Write(id)
		s.units[string(id)].Write(hasher)
	}
	return hasher.Sum()
}
