package components

import (
	"bytes"
	"strings"

	"github.com/alphabill-org/alphabill-exchange/cbor"
	abhash "github.com/alphabill-org/alphabill-exchange/hash"
	"github.com/alphabill-org/alphabill-exchange/types"
)

var _ types.UnitData = (*ComponentData)(nil)

// ComponentData is the state of a globalized component.
type ComponentData struct {
	_         struct{}             `cbor:",toarray"`
	Blueprint string               `json:"blueprint"` // name of the blueprint implementing the component's methods
	OwnerRule types.PredicateBytes `json:"ownerRule"` // access rule of the OWNER role
	State     cbor.RawCBOR         `json:"state"`     // blueprint specific state
}

func NewComponentData(blueprint string, ownerRule types.PredicateBytes, state cbor.RawCBOR) *ComponentData {
	return &ComponentData{
		Blueprint: blueprint,
		OwnerRule: ownerRule,
		State:     state,
	}
}

func (c *ComponentData) Write(hasher abhash.Hasher) {
	hasher.Write(c)
}

func (c *ComponentData) Copy() types.UnitData {
	if c == nil {
		return nil
	}
	return &ComponentData{
		Blueprint: strings.Clone(c.Blueprint),
		OwnerRule: bytes.Clone(c.OwnerRule),
		State:     bytes.Clone(c.State),
	}
}

func (c *ComponentData) Owner() []byte {
	return c.OwnerRule
}
