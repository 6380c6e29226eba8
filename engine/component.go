package engine

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/alphabill-exchange/txsystem/components"
	"github.com/alphabill-org/alphabill-exchange/types"
)

/*
Reservation is a component address allocated ahead of instantiation, so
that the address can be used (ie in access rules of resources the component
will own) before the component exists. Reservation must be used by the same
transaction, otherwise the transaction is rejected.
*/
type Reservation struct {
	tx      *Tx
	address types.ComponentAddress
	used    bool
}

func (r *Reservation) Address() types.ComponentAddress {
	return r.address
}

// AllocateComponentAddress reserves address for a component to be instantiated in the transaction.
func (tx *Tx) AllocateComponentAddress() (*Reservation, error) {
	if err := tx.usable(); err != nil {
		return nil, err
	}
	r := &Reservation{tx: tx, address: types.ComponentAddress(tx.newUnitID(types.ComponentUnitType))}
	tx.reservations = append(tx.reservations, r)
	return r, nil
}

/*
Instantiate creates new component of the blueprint at the reserved address
(when "res" is nil new address is allocated). The constructor of the
blueprint is executed with "arg" in the frame of the new component, ie
vaults it creates are owned by the component and resources it mints are
minted by the component. Value returned by the constructor becomes the
initial state of the component.
*/
func (tx *Tx) Instantiate(blueprint string, res *Reservation, ownerRule types.PredicateBytes, arg any) (types.ComponentAddress, error) {
	if err := tx.usable(); err != nil {
		return nil, err
	}
	bp, err := tx.ledger.blueprint(blueprint)
	if err != nil {
		return nil, err
	}
	if len(ownerRule) == 0 {
		return nil, errors.New("component owner rule is empty")
	}
	if res == nil {
		if res, err = tx.AllocateComponentAddress(); err != nil {
			return nil, err
		}
	}
	if res.tx != tx {
		return nil, fmt.Errorf("address %s was reserved by another transaction", res.address)
	}
	if res.used {
		return nil, fmt.Errorf("address %s is already used", res.address)
	}
	res.used = true
	if err := tx.addUnit(types.UnitID(res.address), components.NewComponentData(bp.Name, ownerRule, nil)); err != nil {
		return nil, err
	}

	_, err = tx.inFrame(res.address, bp.Name, "instantiate", func(f *Frame) (any, error) {
		state, err := bp.Constructor(f, arg)
		if err != nil {
			return nil, err
		}
		return nil, f.SaveState(state)
	})
	if err != nil {
		return nil, err
	}
	tx.log.Debug().Stringer("component", res.address).Str("blueprint", bp.Name).Msg("component instantiated")
	return res.address, nil
}

/*
Call executes method of the component with "arg" as the argument. The
caller (the frame currently executing) must satisfy the role the blueprint
assigns to the method, the implementation registered with the blueprint is
executed in the new frame of the component.
Failure of the call aborts the whole transaction.
*/
func (tx *Tx) Call(addr types.ComponentAddress, method string, arg any) (any, error) {
	if err := tx.usable(); err != nil {
		return nil, err
	}
	cd, err := tx.component(addr)
	if err != nil {
		return nil, tx.fail(err)
	}
	bp, err := tx.ledger.blueprint(cd.Blueprint)
	if err != nil {
		return nil, tx.fail(err)
	}
	m, ok := bp.Methods[method]
	if !ok {
		return nil, tx.fail(fmt.Errorf("%w %s.%s", ErrUnknownMethod, bp.Name, method))
	}
	switch m.Role {
	case RolePublic:
	case RoleOwner:
		if err := tx.top().authorize(cd.OwnerRule); err != nil {
			return nil, tx.fail(fmt.Errorf("%s.%s: %w", bp.Name, method, err))
		}
	default:
		return nil, tx.fail(fmt.Errorf("%s.%s: %w: method is not callable", bp.Name, method, ErrUnauthorized))
	}
	return tx.inFrame(addr, bp.Name, method, func(f *Frame) (any, error) {
		return m.Fn(f, arg)
	})
}

/*
Call is typed version of Tx.Call: the result of the method is returned as
R, method returning nil yields zero value of R.
*/
func Call[R any](tx *Tx, addr types.ComponentAddress, method string, arg any) (R, error) {
	var r R
	res, err := tx.Call(addr, method, arg)
	if err != nil || res == nil {
		return r, err
	}
	v, ok := res.(R)
	if !ok {
		return r, tx.fail(fmt.Errorf("%s: %w: result is %T, expected %T", method, ErrInvalidArgument, res, r))
	}
	return v, nil
}

func (tx *Tx) inFrame(addr types.ComponentAddress, blueprint, method string, fn func(f *Frame) (any, error)) (any, error) {
	f := &Frame{
		tx:    tx,
		actor: addr,
		log:   tx.log.With().Stringer("component", addr).Str("method", method).Logger(),
	}
	tx.frames = append(tx.frames, f)
	defer func() {
		tx.frames = tx.frames[:len(tx.frames)-1]
		// handles to the frame (and vaults opened in it) are dead from now on
		f.returned = true
		f.proofs = nil
	}()

	res, err := fn(f)
	if err != nil {
		f.log.Debug().Err(err).Msg("call failed")
		return nil, tx.fail(fmt.Errorf("%s.%s: %w", blueprint, method, err))
	}
	return res, nil
}

// ComponentInfo is the public view of a component.
type ComponentInfo struct {
	Address   types.ComponentAddress
	Blueprint string
	OwnerRule types.PredicateBytes
}

func (tx *Tx) ComponentInfo(addr types.ComponentAddress) (*ComponentInfo, error) {
	if err := tx.usable(); err != nil {
		return nil, err
	}
	cd, err := tx.component(addr)
	if err != nil {
		return nil, err
	}
	return &ComponentInfo{Address: addr, Blueprint: cd.Blueprint, OwnerRule: cd.OwnerRule}, nil
}

func (tx *Tx) component(addr types.ComponentAddress) (*components.ComponentData, error) {
	if err := types.UnitID(addr).TypeMustBe(types.ComponentUnitType); err != nil {
		return nil, fmt.Errorf("invalid component address: %w", err)
	}
	u, err := tx.getUnit(types.UnitID(addr))
	if err != nil {
		return nil, err
	}
	cd, ok := u.(*components.ComponentData)
	if !ok {
		return nil, fmt.Errorf("unit %s is not a component", addr)
	}
	return cd, nil
}
