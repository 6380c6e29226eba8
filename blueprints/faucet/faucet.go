/*
Package faucet implements the source of the settlement asset XRD.

Both the faucet component and the XRD resource are created by the genesis
transaction so their addresses are the same on every ledger.
*/
package faucet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/engine"
	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/types"
)

const (
	MethodFree         = "free"
	MethodGetDispensed = "get_dispensed"

	XRDDivisibility = resources.DivisibilityMax
)

var (
	Blueprint = &engine.Blueprint{
		Name: "Faucet",
		Constructor: engine.Fn(func(f *engine.Frame, _ struct{}) (*faucetState, error) {
			return &faucetState{Dispensed: decimal.Zero}, nil
		}),
		Methods: map[string]engine.Method{
			MethodFree:         {Role: engine.RolePublic, Fn: engine.Fn(free)},
			MethodGetDispensed: {Role: engine.RolePublic, Fn: engine.Fn(dispensed)},
		},
	}

	// Address of the faucet component.
	Address = types.ComponentAddress(engine.DeriveUnitID(uuid.Nil, 0, types.ComponentUnitType))
	// XRD is the settlement resource.
	XRD = types.ResourceAddress(engine.DeriveUnitID(uuid.Nil, 1, types.ResourceUnitType))

	// FreeAmount is the amount of XRD returned by single Free call.
	FreeAmount = decimal.NewFromInt(10000)
)

type faucetState struct {
	_         struct{} `cbor:",toarray"`
	Dispensed decimal.Decimal
}

/*
Genesis registers the faucet blueprint and executes the genesis transaction
which creates the XRD resource and the faucet component holding the right
to mint it.
*/
func Genesis(ctx context.Context, l *engine.Ledger) (*engine.Receipt, error) {
	if err := l.Register(Blueprint); err != nil {
		return nil, err
	}
	return l.Genesis(ctx, func(tx *engine.Tx) error {
		res, err := tx.AllocateComponentAddress()
		if err != nil {
			return err
		}
		spec := resources.NewFungible(XRDDivisibility, map[string]string{
			resources.MetadataName:        "Radix",
			resources.MetadataSymbol:      "XRD",
			resources.MetadataDescription: "Settlement token of the exchange ledger",
		})
		spec.Roles.Mint.Rule = templates.NewGlobalCallerBytes(res.Address())
		xrd, err := tx.NewResource(spec)
		if err != nil {
			return fmt.Errorf("creating XRD: %w", err)
		}
		if !xrd.Eq(XRD) || !res.Address().Eq(Address) {
			return fmt.Errorf("genesis addresses mismatch: faucet %s, XRD %s", res.Address(), xrd)
		}
		_, err = tx.Instantiate(Blueprint.Name, res, templates.AlwaysFalseBytes(), nil)
		return err
	})
}

func free(f *engine.Frame, _ struct{}) (*engine.Bucket, error) {
	var st faucetState
	if err := f.LoadState(&st); err != nil {
		return nil, err
	}
	b, err := f.Tx().Mint(XRD, FreeAmount)
	if err != nil {
		return nil, err
	}
	st.Dispensed = st.Dispensed.Add(FreeAmount)
	f.Log().Debug().Stringer("dispensed", st.Dispensed).Msg("free XRD")
	return b, f.SaveState(&st)
}

func dispensed(f *engine.Frame, _ struct{}) (decimal.Decimal, error) {
	var st faucetState
	if err := f.LoadState(&st); err != nil {
		return decimal.Zero, err
	}
	return st.Dispensed, nil
}

// Free returns bucket of FreeAmount XRD.
func Free(tx *engine.Tx) (*engine.Bucket, error) {
	return engine.Call[*engine.Bucket](tx, Address, MethodFree, nil)
}

// Dispensed returns the total amount of XRD the faucet has given out.
func Dispensed(tx *engine.Tx) (decimal.Decimal, error) {
	return engine.Call[decimal.Decimal](tx, Address, MethodGetDispensed, nil)
}
