package templates

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/cbor"
	"github.com/alphabill-org/alphabill-exchange/predicates"
	"github.com/alphabill-org/alphabill-exchange/types"
)

// maximum nesting of AnyOf/AllOf rules
const maxDepth = 8

/*
Environment is the view of the authorization context a rule is evaluated in.
*/
type Environment interface {
	// HasProof returns true when the auth zone holds proof(s) of at least
	// "amount" units of the resource, zero amount means any non-zero amount.
	HasProof(resource types.ResourceAddress, amount decimal.Decimal) bool
	// CallerIs returns true when the action is performed by the component.
	CallerIs(component types.ComponentAddress) bool
	// SignedBy returns true when the transaction is signed by the key with given hash.
	SignedBy(pubKeyHash []byte) bool
}

/*
Evaluate decodes the access rule and evaluates it against env. Error is
returned for malformed or unknown rules, such rules never authorize anything.
*/
func Evaluate(rule types.PredicateBytes, env Environment) (bool, error) {
	return evaluate(rule, env, 0)
}

func evaluate(rule types.PredicateBytes, env Environment, depth int) (bool, error) {
	if depth > maxDepth {
		return false, fmt.Errorf("access rule nesting exceeds %d levels", maxDepth)
	}
	// fast path for the hardcoded templates
	switch {
	case bytes.Equal(rule, alwaysTrueBytes):
		return true, nil
	case bytes.Equal(rule, alwaysFalseBytes):
		return false, nil
	}

	pred := &predicates.Predicate{}
	if err := cbor.Unmarshal(rule, pred); err != nil {
		return false, fmt.Errorf("decoding access rule: %w", err)
	}
	if pred.Tag != TemplateStartByte {
		return false, fmt.Errorf("unsupported predicate engine %d", pred.Tag)
	}
	if len(pred.Code) != 1 {
		return false, fmt.Errorf("invalid template code length %d", len(pred.Code))
	}

	switch pred.Code[0] {
	case AlwaysFalseID:
		return false, nil
	case AlwaysTrueID:
		return true, nil
	case P2pkh256ID:
		if len(pred.Params) == 0 {
			return false, errors.New("p2pkh rule without public key hash")
		}
		return env.SignedBy(pred.Params), nil
	case RequireResourceID:
		if err := types.UnitID(pred.Params).TypeMustBe(types.ResourceUnitType); err != nil {
			return false, fmt.Errorf("invalid resource address: %w", err)
		}
		return env.HasProof(types.ResourceAddress(pred.Params), decimal.Zero), nil
	case RequireAmountID:
		params := RequireAmountParams{}
		if err := cbor.Unmarshal(pred.Params, &params); err != nil {
			return false, fmt.Errorf("decoding require amount params: %w", err)
		}
		amount, err := decimal.NewFromString(params.Amount)
		if err != nil {
			return false, fmt.Errorf("invalid amount in access rule: %w", err)
		}
		return env.HasProof(params.Resource, amount), nil
	case GlobalCallerID:
		if err := types.UnitID(pred.Params).TypeMustBe(types.ComponentUnitType); err != nil {
			return false, fmt.Errorf("invalid component address: %w", err)
		}
		return env.CallerIs(types.ComponentAddress(pred.Params)), nil
	case AnyOfID, AllOfID:
		var rules []types.PredicateBytes
		if err := cbor.Unmarshal(pred.Params, &rules); err != nil {
			return false, fmt.Errorf("decoding composite rule: %w", err)
		}
		anyOf := pred.Code[0] == AnyOfID
		for _, r := range rules {
			ok, err := evaluate(r, env, depth+1)
			if err != nil {
				return false, err
			}
			if ok == anyOf {
				return anyOf, nil
			}
		}
		// empty AnyOf is false, empty AllOf is true
		return !anyOf, nil
	default:
		return false, fmt.Errorf("unknown predicate template %d", pred.Code[0])
	}
}
