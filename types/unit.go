package types

import (
	abhash "github.com/alphabill-org/alphabill-exchange/hash"
)

type (
	// UnitData is a generic data type for the unit state.
	UnitData interface {
		Write(hasher abhash.Hasher)
		Copy() UnitData
		Owner() []byte
	}

	// PredicateBytes is CBOR encoded access rule, see package predicates.
	PredicateBytes []byte
)
