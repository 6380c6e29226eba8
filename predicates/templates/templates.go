package templates

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/cbor"
	abhash "github.com/alphabill-org/alphabill-exchange/hash"
	"github.com/alphabill-org/alphabill-exchange/predicates"
	"github.com/alphabill-org/alphabill-exchange/types"
)

const (
	AlwaysFalseID byte = iota
	AlwaysTrueID
	P2pkh256ID
	RequireResourceID
	RequireAmountID
	GlobalCallerID
	AnyOfID
	AllOfID

	TemplateStartByte = 0x00
)

var (
	alwaysFalseBytes = []byte{0x83, 0x00, 0x41, 0x00, 0xf6}
	alwaysTrueBytes  = []byte{0x83, 0x00, 0x41, 0x01, 0xf6}
)

type (
	// RequireAmountParams is the data encoded in Predicate.Params of the
	// "require amount" template.
	RequireAmountParams struct {
		_        struct{} `cbor:",toarray"`
		Resource types.ResourceAddress
		Amount   string
	}
)

// AlwaysFalseBytes is the "deny all" rule.
func AlwaysFalseBytes() types.PredicateBytes {
	return alwaysFalseBytes
}

// AlwaysTrueBytes is the "allow all" rule.
func AlwaysTrueBytes() types.PredicateBytes {
	return alwaysTrueBytes
}

func NewP2pkh256FromKey(pubKey []byte) predicates.Predicate {
	return NewP2pkh256FromKeyHash(abhash.Sum256(pubKey))
}

func NewP2pkh256FromKeyHash(pubKeyHash []byte) predicates.Predicate {
	return predicates.Predicate{Tag: TemplateStartByte, Code: []byte{P2pkh256ID}, Params: pubKeyHash}
}

func NewP2pkh256BytesFromKey(pubKey []byte) types.PredicateBytes {
	return mustMarshal(NewP2pkh256FromKey(pubKey))
}

func NewP2pkh256BytesFromKeyHash(pubKeyHash []byte) types.PredicateBytes {
	return mustMarshal(NewP2pkh256FromKeyHash(pubKeyHash))
}

/*
NewRequireResourceBytes returns rule which is satisfied when the auth zone
holds a proof of any non-zero amount of the resource (ie the resource is
used as a badge).
*/
func NewRequireResourceBytes(resource types.ResourceAddress) types.PredicateBytes {
	return mustMarshal(predicates.Predicate{Tag: TemplateStartByte, Code: []byte{RequireResourceID}, Params: resource})
}

// NewRequireAmountBytes returns rule which requires proof of at least "amount" units of the resource.
func NewRequireAmountBytes(amount decimal.Decimal, resource types.ResourceAddress) types.PredicateBytes {
	params := mustMarshal(RequireAmountParams{Resource: resource, Amount: amount.String()})
	return mustMarshal(predicates.Predicate{Tag: TemplateStartByte, Code: []byte{RequireAmountID}, Params: params})
}

/*
NewGlobalCallerBytes returns rule which is satisfied only when the action is
performed by the given component, ie the component is the direct caller.
*/
func NewGlobalCallerBytes(component types.ComponentAddress) types.PredicateBytes {
	return mustMarshal(predicates.Predicate{Tag: TemplateStartByte, Code: []byte{GlobalCallerID}, Params: component})
}

// NewAnyOfBytes returns rule which is satisfied when at least one of the rules is.
func NewAnyOfBytes(rules ...types.PredicateBytes) types.PredicateBytes {
	return newCompositeBytes(AnyOfID, rules)
}

// NewAllOfBytes returns rule which is satisfied when all of the rules are.
func NewAllOfBytes(rules ...types.PredicateBytes) types.PredicateBytes {
	return newCompositeBytes(AllOfID, rules)
}

func newCompositeBytes(id byte, rules []types.PredicateBytes) types.PredicateBytes {
	if rules == nil {
		rules = []types.PredicateBytes{}
	}
	return mustMarshal(predicates.Predicate{Tag: TemplateStartByte, Code: []byte{id}, Params: mustMarshal(rules)})
}

func ExtractPubKeyHashFromP2pkhPredicate(pb []byte) ([]byte, error) {
	predicate := &predicates.Predicate{}
	if err := cbor.Unmarshal(pb, predicate); err != nil {
		return nil, fmt.Errorf("extracting predicate: %w", err)
	}
	if err := VerifyP2pkhPredicate(predicate); err != nil {
		return nil, err
	}
	return predicate.Params, nil
}

// VerifyP2pkhPredicate returns nil if the predicate is a valid P2PKH256 predicate,
// or an error if the predicate is invalid, with a description of the specific validation error.
func VerifyP2pkhPredicate(predicate *predicates.Predicate) error {
	if predicate == nil {
		return errors.New("predicate is nil")
	}
	if predicate.Tag != TemplateStartByte {
		return fmt.Errorf("not a predicate template (tag %d)", predicate.Tag)
	}
	if len(predicate.Code) != 1 || predicate.Code[0] != P2pkh256ID {
		return fmt.Errorf("not a p2pkh predicate (id %X)", predicate.Code)
	}
	return nil
}

// all the values we encode here are built from plain byte slices and
// strings, encoding them can't fail.
func mustMarshal(v any) []byte {
	buf, err := cbor.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("encoding predicate template: %w", err))
	}
	return buf
}

/*
ExtractResourceFromRequireResource returns the badge resource of the
"require resource" rule.
*/
func ExtractResourceFromRequireResource(pb []byte) (types.ResourceAddress, error) {
	predicate := &predicates.Predicate{}
	if err := cbor.Unmarshal(pb, predicate); err != nil {
		return nil, fmt.Errorf("extracting predicate: %w", err)
	}
	if predicate.Tag != TemplateStartByte {
		return nil, fmt.Errorf("not a predicate template (tag %d)", predicate.Tag)
	}
	if len(predicate.Code) != 1 || predicate.Code[0] != RequireResourceID {
		return nil, fmt.Errorf("not a require resource predicate (id %X)", predicate.Code)
	}
	if err := types.UnitID(predicate.Params).TypeMustBe(types.ResourceUnitType); err != nil {
		return nil, fmt.Errorf("invalid resource address: %w", err)
	}
	return types.ResourceAddress(predicate.Params), nil
}
