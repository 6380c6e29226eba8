package predicates

import (
	"github.com/alphabill-org/alphabill-exchange/cbor"
	"github.com/alphabill-org/alphabill-exchange/types"
)

// Predicate is the generic access rule: Tag selects the predicate engine,
// Code the rule within the engine and Params are the rule's arguments.
type Predicate struct {
	_      struct{} `cbor:",toarray"`
	Tag    uint64
	Code   []byte
	Params []byte
}

func (p Predicate) AsBytes() (types.PredicateBytes, error) {
	buf, err := cbor.Marshal(p)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
