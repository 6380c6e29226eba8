/*
Package candystore implements the composed store: a component which owns a
gumball machine (exchange component) through the machine's owner badge. The
badge never leaves the store, the store presents it to the machine only for
the duration of a single forwarded call.

Store created by InstantiateOwned owns it's machine without a badge, the
machine accepts owner calls from the store only.
*/
package candystore

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/blueprints/exchange"
	"github.com/alphabill-org/alphabill-exchange/engine"
	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/types"
)

const (
	MethodBuyGumball        = "buy_gumball"
	MethodGetPrices         = "get_prices"
	MethodGetGumballMachine = "get_gumball_machine"
	MethodSetGumballPrice   = "set_gumball_price"
	MethodRestockStore      = "restock_store"
	MethodWithdrawEarnings  = "withdraw_earnings"
)

var Blueprint = &engine.Blueprint{
	Name:        "CandyStore",
	Constructor: engine.Fn(construct),
	Methods: map[string]engine.Method{
		MethodBuyGumball:        {Role: engine.RolePublic, Fn: engine.Fn(buyGumball)},
		MethodGetPrices:         {Role: engine.RolePublic, Fn: engine.Fn(getPrices)},
		MethodGetGumballMachine: {Role: engine.RolePublic, Fn: engine.Fn(getGumballMachine)},
		MethodSetGumballPrice:   {Role: engine.RoleOwner, Fn: engine.Fn(setGumballPrice)},
		MethodRestockStore:      {Role: engine.RoleOwner, Fn: engine.Fn(restockStore)},
		MethodWithdrawEarnings:  {Role: engine.RoleOwner, Fn: engine.Fn(withdrawEarnings)},
	},
}

var one = decimal.NewFromInt(1)

type (
	// Store is a handle of a candy store component.
	Store struct {
		Address types.ComponentAddress
	}

	storeArgs struct {
		Price      decimal.Decimal
		Settlement types.ResourceAddress
		// machine (and it's owner badge) created by the caller, when nil the
		// store creates gumball machine owned by itself
		Machine      types.ComponentAddress
		MachineBadge *engine.Bucket
	}

	buyResult struct {
		Gumball *engine.Bucket
		Change  *engine.Bucket
	}

	storeState struct {
		_              struct{} `cbor:",toarray"`
		GumballMachine types.ComponentAddress
		MachineBadges  types.VaultID // owner badge of the gumball machine, empty when the store owns the machine
	}
)

func newOwnerBadge(tx *engine.Tx) (*engine.Bucket, error) {
	badge, err := tx.NewResourceWithSupply(resources.NewFungible(resources.DivisibilityNone, map[string]string{
		resources.MetadataName:   "Owner Badge",
		resources.MetadataSymbol: "OWNR",
	}), one)
	if err != nil {
		return nil, fmt.Errorf("creating owner badge: %w", err)
	}
	return badge, nil
}

/*
Instantiate creates the candy store with it's gumball machine selling for
"price" of the settlement resource. The store keeps the owner badge of the
machine. Returned bucket contains the owner badge of the store.
*/
func Instantiate(tx *engine.Tx, price decimal.Decimal, settlement types.ResourceAddress) (*Store, *engine.Bucket, error) {
	badge, err := newOwnerBadge(tx)
	if err != nil {
		return nil, nil, err
	}
	machine, machineBadge, err := exchange.Instantiate(tx, exchange.GumballParams(price, settlement))
	if err != nil {
		return nil, nil, fmt.Errorf("creating gumball machine: %w", err)
	}
	addr, err := tx.Instantiate(Blueprint.Name, nil, templates.NewRequireResourceBytes(badge.Resource()), storeArgs{
		Price:        price,
		Settlement:   settlement,
		Machine:      machine.Address,
		MachineBadge: machineBadge,
	})
	if err != nil {
		return nil, nil, err
	}
	return &Store{Address: addr}, badge, nil
}

/*
InstantiateOwned creates the candy store which owns it's gumball machine
directly: the machine is created by the store and has no owner badge, only
the store may call it's owner methods.
*/
func InstantiateOwned(tx *engine.Tx, price decimal.Decimal, settlement types.ResourceAddress) (*Store, *engine.Bucket, error) {
	badge, err := newOwnerBadge(tx)
	if err != nil {
		return nil, nil, err
	}
	addr, err := tx.Instantiate(Blueprint.Name, nil, templates.NewRequireResourceBytes(badge.Resource()), storeArgs{
		Price:      price,
		Settlement: settlement,
	})
	if err != nil {
		return nil, nil, err
	}
	return &Store{Address: addr}, badge, nil
}

func construct(f *engine.Frame, a storeArgs) (*storeState, error) {
	if a.MachineBadge == nil {
		m, err := exchange.InstantiateOwned(f.Tx(), exchange.GumballParams(a.Price, a.Settlement))
		if err != nil {
			return nil, fmt.Errorf("creating gumball machine: %w", err)
		}
		return &storeState{GumballMachine: m.Address}, nil
	}
	v, err := f.NewVault(a.MachineBadge.Resource())
	if err != nil {
		return nil, err
	}
	if err := v.Put(a.MachineBadge); err != nil {
		return nil, err
	}
	return &storeState{GumballMachine: a.Machine, MachineBadges: v.ID()}, nil
}

func load(f *engine.Frame) (*storeState, *exchange.Machine, error) {
	st := &storeState{}
	if err := f.LoadState(st); err != nil {
		return nil, nil, err
	}
	return st, &exchange.Machine{Address: st.GumballMachine}, nil
}

func getGumballMachine(f *engine.Frame, _ struct{}) (types.ComponentAddress, error) {
	st, _, err := load(f)
	if err != nil {
		return nil, err
	}
	return st.GumballMachine, nil
}

func getPrices(f *engine.Frame, _ struct{}) (decimal.Decimal, error) {
	_, machine, err := load(f)
	if err != nil {
		return decimal.Zero, err
	}
	price, err := machine.GetPrice(f.Tx())
	if err != nil {
		return decimal.Zero, err
	}
	f.Log().Info().Msgf("Gumball price is %s XRD", price)
	return price, nil
}

func buyGumball(f *engine.Frame, payment *engine.Bucket) (*buyResult, error) {
	_, machine, err := load(f)
	if err != nil {
		return nil, err
	}
	gumball, change, err := machine.Buy(f.Tx(), payment)
	if err != nil {
		return nil, err
	}
	return &buyResult{Gumball: gumball, Change: change}, nil
}

/*
asMachineOwner executes fn with the store authorized as the owner of the
machine: proof of the machine's owner badge is kept in the auth zone of the
store for the duration of fn. Store owning the machine directly is the
owner by being the caller.
*/
func asMachineOwner(f *engine.Frame, fn func(*exchange.Machine) error) error {
	st, machine, err := load(f)
	if err != nil {
		return err
	}
	if len(st.MachineBadges) == 0 {
		return fn(machine)
	}
	badges, err := f.Vault(st.MachineBadges)
	if err != nil {
		return err
	}
	return f.AuthorizeWithAmount(badges, one, func() error { return fn(machine) })
}

func setGumballPrice(f *engine.Frame, price decimal.Decimal) (struct{}, error) {
	return struct{}{}, asMachineOwner(f, func(m *exchange.Machine) error {
		return m.SetPrice(f.Tx(), price)
	})
}

func restockStore(f *engine.Frame, _ struct{}) (minted decimal.Decimal, err error) {
	err = asMachineOwner(f, func(m *exchange.Machine) (err error) {
		minted, err = m.RefillToCapacity(f.Tx())
		return err
	})
	return minted, err
}

func withdrawEarnings(f *engine.Frame, _ struct{}) (earnings *engine.Bucket, err error) {
	err = asMachineOwner(f, func(m *exchange.Machine) (err error) {
		earnings, err = m.WithdrawEarnings(f.Tx())
		return err
	})
	return earnings, err
}

// GumballMachine returns handle of the store's gumball machine.
func (s *Store) GumballMachine(tx *engine.Tx) (*exchange.Machine, error) {
	addr, err := engine.Call[types.ComponentAddress](tx, s.Address, MethodGetGumballMachine, nil)
	if err != nil {
		return nil, err
	}
	return &exchange.Machine{Address: addr}, nil
}

func (s *Store) GetPrices(tx *engine.Tx) (decimal.Decimal, error) {
	return engine.Call[decimal.Decimal](tx, s.Address, MethodGetPrices, nil)
}

func (s *Store) BuyGumball(tx *engine.Tx, payment *engine.Bucket) (gumball, change *engine.Bucket, err error) {
	r, err := engine.Call[*buyResult](tx, s.Address, MethodBuyGumball, payment)
	if err != nil {
		return nil, nil, err
	}
	return r.Gumball, r.Change, nil
}

func (s *Store) SetGumballPrice(tx *engine.Tx, price decimal.Decimal) error {
	_, err := tx.Call(s.Address, MethodSetGumballPrice, price)
	return err
}

// RestockStore refills the gumball machine to it's capacity.
func (s *Store) RestockStore(tx *engine.Tx) (decimal.Decimal, error) {
	return engine.Call[decimal.Decimal](tx, s.Address, MethodRestockStore, nil)
}

func (s *Store) WithdrawEarnings(tx *engine.Tx) (*engine.Bucket, error) {
	return engine.Call[*engine.Bucket](tx, s.Address, MethodWithdrawEarnings, nil)
}
