/*
Package exchange implements the exchange component (the "gumball machine"):
it sells units of its own product resource for a fixed price in a settlement
resource. The owner of the component (holder of the owner badge) may change
the price, collect the earnings and mint more product.
*/
package exchange

import (
	"errors"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/engine"
	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/types"
)

const (
	MethodBuy              = "buy"
	MethodGetPrice         = "get_price"
	MethodGetStatus        = "get_status"
	MethodSetPrice         = "set_price"
	MethodWithdrawEarnings = "withdraw_earnings"
	MethodRefill           = "refill"
	MethodRefillToCapacity = "refill_to_capacity"
)

var Blueprint = &engine.Blueprint{
	Name:        "GumballMachine",
	Constructor: engine.Fn(construct),
	Methods: map[string]engine.Method{
		MethodBuy:              {Role: engine.RolePublic, Fn: engine.Fn(buy)},
		MethodGetPrice:         {Role: engine.RolePublic, Fn: engine.Fn(getPrice)},
		MethodGetStatus:        {Role: engine.RolePublic, Fn: engine.Fn(getStatus)},
		MethodSetPrice:         {Role: engine.RoleOwner, Fn: engine.Fn(setPrice)},
		MethodWithdrawEarnings: {Role: engine.RoleOwner, Fn: engine.Fn(withdrawEarnings)},
		MethodRefill:           {Role: engine.RoleOwner, Fn: engine.Fn(refill)},
		MethodRefillToCapacity: {Role: engine.RoleOwner, Fn: engine.Fn(refillToCapacity)},
	},
}

var one = decimal.NewFromInt(1)

type (
	// Params of a new exchange component.
	Params struct {
		Price        decimal.Decimal
		InitialStock decimal.Decimal
		// Capacity is the stock RefillToCapacity refills to.
		Capacity     decimal.Decimal
		Product      map[string]string // metadata of the product resource
		Divisibility uint8             // divisibility of the product resource
		Settlement   types.ResourceAddress
	}

	// Status is the public state of the exchange.
	Status struct {
		Price      decimal.Decimal
		Stock      decimal.Decimal
		Capacity   decimal.Decimal
		Product    types.ResourceAddress
		Settlement types.ResourceAddress
	}

	// Machine is a handle of an exchange component.
	Machine struct {
		Address types.ComponentAddress
	}

	// constructor argument
	machineArgs struct {
		Price      decimal.Decimal
		Capacity   decimal.Decimal
		Settlement types.ResourceAddress
		Stock      *engine.Bucket // initial stock, the product resource
	}

	buyResult struct {
		Product *engine.Bucket
		Change  *engine.Bucket
	}

	machineState struct {
		_          struct{} `cbor:",toarray"`
		Price      decimal.Decimal
		Capacity   decimal.Decimal
		Product    types.ResourceAddress
		Settlement types.ResourceAddress
		Stock      types.VaultID
		Earnings   types.VaultID
	}
)

// GumballParams returns params of the gumball machine selling gumballs for XRD.
func GumballParams(price decimal.Decimal, settlement types.ResourceAddress) Params {
	return Params{
		Price:        price,
		InitialStock: decimal.NewFromInt(100),
		Capacity:     decimal.NewFromInt(100),
		Product: map[string]string{
			resources.MetadataName:        "Gumball",
			resources.MetadataSymbol:      "GUM",
			resources.MetadataDescription: "A delicious gumball",
			resources.MetadataIconURL:     "https://assets.radixdlt.com/icons/icon-gumball-pink.png",
		},
		Divisibility: resources.DivisibilityNone,
		Settlement:   settlement,
	}
}

func (p *Params) IsValid() error {
	if p.Price.IsNegative() {
		return fmt.Errorf("price must not be negative, got %s", p.Price)
	}
	if err := types.ValidateAmount(p.InitialStock, p.Divisibility); err != nil {
		return fmt.Errorf("invalid initial stock: %w", err)
	}
	if err := types.ValidateAmount(p.Capacity, p.Divisibility); err != nil {
		return fmt.Errorf("invalid capacity: %w", err)
	}
	if p.Settlement == nil {
		return errors.New("settlement resource is not assigned")
	}
	return nil
}

/*
Instantiate creates new exchange component and returns it's handle and the
owner badge. The product resource can be minted only by the component, the
owner badge can't be minted at all: losing the badge means losing the owner
privileges for good.
*/
func Instantiate(tx *engine.Tx, p Params) (*Machine, *engine.Bucket, error) {
	if err := p.IsValid(); err != nil {
		return nil, nil, err
	}
	name := p.Product[resources.MetadataName]
	badge, err := tx.NewResourceWithSupply(resources.NewBadge(name+" Machine Owner Badge"), one)
	if err != nil {
		return nil, nil, fmt.Errorf("creating owner badge: %w", err)
	}
	m, err := instantiate(tx, p, templates.NewRequireResourceBytes(badge.Resource()))
	if err != nil {
		return nil, nil, err
	}
	return m, badge, nil
}

/*
InstantiateOwned creates exchange component owned by the component calling
it: there is no owner badge, only the calling component can use the owner
methods of the new exchange.
*/
func InstantiateOwned(tx *engine.Tx, p Params) (*Machine, error) {
	owner := tx.Caller()
	if owner == nil {
		return nil, errors.New("owned exchange must be instantiated by a component")
	}
	if err := p.IsValid(); err != nil {
		return nil, err
	}
	return instantiate(tx, p, templates.NewGlobalCallerBytes(owner))
}

func instantiate(tx *engine.Tx, p Params, ownerRule types.PredicateBytes) (*Machine, error) {
	settlement, err := tx.ResourceInfo(p.Settlement)
	if err != nil {
		return nil, fmt.Errorf("settlement resource: %w", err)
	}
	if err := types.ValidateAmount(p.Price, settlement.Divisibility); err != nil {
		return nil, fmt.Errorf("invalid price: %w", err)
	}

	res, err := tx.AllocateComponentAddress()
	if err != nil {
		return nil, err
	}
	spec := resources.NewFungible(p.Divisibility, maps.Clone(p.Product))
	spec.Roles.Mint.Rule = templates.NewGlobalCallerBytes(res.Address())
	stock, err := tx.NewResourceWithSupply(spec, p.InitialStock)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	addr, err := tx.Instantiate(Blueprint.Name, res, ownerRule, machineArgs{
		Price:      p.Price,
		Capacity:   p.Capacity,
		Settlement: p.Settlement,
		Stock:      stock,
	})
	if err != nil {
		return nil, err
	}
	return &Machine{Address: addr}, nil
}

func construct(f *engine.Frame, a machineArgs) (*machineState, error) {
	if a.Stock == nil {
		return nil, errors.New("initial stock is nil")
	}
	if a.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative, got %s", engine.ErrInvalidAmount, a.Price)
	}
	stock, err := f.NewVault(a.Stock.Resource())
	if err != nil {
		return nil, err
	}
	if err := stock.Put(a.Stock); err != nil {
		return nil, err
	}
	earnings, err := f.NewVault(a.Settlement)
	if err != nil {
		return nil, err
	}
	return &machineState{
		Price:      a.Price,
		Capacity:   a.Capacity,
		Product:    a.Stock.Resource(),
		Settlement: a.Settlement,
		Stock:      stock.ID(),
		Earnings:   earnings.ID(),
	}, nil
}

func loadState(f *engine.Frame) (*machineState, error) {
	st := &machineState{}
	if err := f.LoadState(st); err != nil {
		return nil, err
	}
	return st, nil
}

func buy(f *engine.Frame, payment *engine.Bucket) (*buyResult, error) {
	st, err := loadState(f)
	if err != nil {
		return nil, err
	}
	stock, err := f.Vault(st.Stock)
	if err != nil {
		return nil, err
	}
	available, err := stock.Amount()
	if err != nil {
		return nil, err
	}
	if available.LessThan(one) {
		return nil, engine.ErrOutOfStock
	}

	if payment == nil {
		return nil, fmt.Errorf("%w: no payment", engine.ErrInsufficientPayment)
	}
	if !payment.Resource().Eq(st.Settlement) {
		return nil, fmt.Errorf("%w: %w: paid with %s, expected %s", engine.ErrInsufficientPayment, engine.ErrTypeMismatch, payment.Resource(), st.Settlement)
	}
	if payment.Amount().LessThan(st.Price) {
		return nil, fmt.Errorf("%w: paid %s, price is %s", engine.ErrInsufficientPayment, payment.Amount(), st.Price)
	}
	share, err := payment.Take(st.Price)
	if err != nil {
		return nil, err
	}
	earnings, err := f.Vault(st.Earnings)
	if err != nil {
		return nil, err
	}
	if err := earnings.Put(share); err != nil {
		return nil, err
	}
	product, err := stock.Take(one)
	if err != nil {
		return nil, err
	}
	f.Log().Info().Stringer("price", st.Price).Stringer("change", payment.Amount()).Msg("sold")
	return &buyResult{Product: product, Change: payment}, nil
}

func getPrice(f *engine.Frame, _ struct{}) (decimal.Decimal, error) {
	st, err := loadState(f)
	if err != nil {
		return decimal.Zero, err
	}
	f.Log().Info().Msgf("price is %s", st.Price)
	return st.Price, nil
}

func getStatus(f *engine.Frame, _ struct{}) (*Status, error) {
	st, err := loadState(f)
	if err != nil {
		return nil, err
	}
	stock, err := f.Vault(st.Stock)
	if err != nil {
		return nil, err
	}
	amount, err := stock.Amount()
	if err != nil {
		return nil, err
	}
	return &Status{
		Price:      st.Price,
		Stock:      amount,
		Capacity:   st.Capacity,
		Product:    st.Product,
		Settlement: st.Settlement,
	}, nil
}

func setPrice(f *engine.Frame, price decimal.Decimal) (struct{}, error) {
	st, err := loadState(f)
	if err != nil {
		return struct{}{}, err
	}
	if price.IsNegative() {
		return struct{}{}, fmt.Errorf("%w: price must not be negative, got %s", engine.ErrInvalidAmount, price)
	}
	info, err := f.Tx().ResourceInfo(st.Settlement)
	if err != nil {
		return struct{}{}, err
	}
	if err := types.ValidateAmount(price, info.Divisibility); err != nil {
		return struct{}{}, fmt.Errorf("%w: %w", engine.ErrInvalidAmount, err)
	}
	f.Log().Info().Stringer("old", st.Price).Stringer("new", price).Msg("price changed")
	st.Price = price
	return struct{}{}, f.SaveState(st)
}

func withdrawEarnings(f *engine.Frame, _ struct{}) (*engine.Bucket, error) {
	st, err := loadState(f)
	if err != nil {
		return nil, err
	}
	v, err := f.Vault(st.Earnings)
	if err != nil {
		return nil, err
	}
	return v.TakeAll()
}

func refill(f *engine.Frame, target decimal.Decimal) (decimal.Decimal, error) {
	st, err := loadState(f)
	if err != nil {
		return decimal.Zero, err
	}
	return refillTo(f, st, target)
}

func refillToCapacity(f *engine.Frame, _ struct{}) (decimal.Decimal, error) {
	st, err := loadState(f)
	if err != nil {
		return decimal.Zero, err
	}
	return refillTo(f, st, st.Capacity)
}

func refillTo(f *engine.Frame, st *machineState, target decimal.Decimal) (decimal.Decimal, error) {
	stock, err := f.Vault(st.Stock)
	if err != nil {
		return decimal.Zero, err
	}
	current, err := stock.Amount()
	if err != nil {
		return decimal.Zero, err
	}
	if current.GreaterThanOrEqual(target) {
		return decimal.Zero, nil
	}
	amount := target.Sub(current)
	b, err := f.Tx().Mint(st.Product, amount)
	if err != nil {
		return decimal.Zero, err
	}
	if err := stock.Put(b); err != nil {
		return decimal.Zero, err
	}
	f.Log().Info().Stringer("minted", amount).Stringer("stock", target).Msg("refilled")
	return amount, nil
}

/*
Buy sells one unit of product for the price, the rest of the payment is
returned as change.
*/
func (m *Machine) Buy(tx *engine.Tx, payment *engine.Bucket) (product, change *engine.Bucket, err error) {
	r, err := engine.Call[*buyResult](tx, m.Address, MethodBuy, payment)
	if err != nil {
		return nil, nil, err
	}
	return r.Product, r.Change, nil
}

func (m *Machine) GetPrice(tx *engine.Tx) (decimal.Decimal, error) {
	return engine.Call[decimal.Decimal](tx, m.Address, MethodGetPrice, nil)
}

func (m *Machine) GetStatus(tx *engine.Tx) (*Status, error) {
	return engine.Call[*Status](tx, m.Address, MethodGetStatus, nil)
}

// SetPrice replaces the price, negative price is rejected.
func (m *Machine) SetPrice(tx *engine.Tx, price decimal.Decimal) error {
	_, err := tx.Call(m.Address, MethodSetPrice, price)
	return err
}

// WithdrawEarnings returns all the collected payments, empty bucket when there is nothing to collect.
func (m *Machine) WithdrawEarnings(tx *engine.Tx) (*engine.Bucket, error) {
	return engine.Call[*engine.Bucket](tx, m.Address, MethodWithdrawEarnings, nil)
}

/*
Refill mints product so that the stock is "target" units, no-op when there
is already at least "target" units in stock. Returns the amount minted.
*/
func (m *Machine) Refill(tx *engine.Tx, target decimal.Decimal) (decimal.Decimal, error) {
	return engine.Call[decimal.Decimal](tx, m.Address, MethodRefill, target)
}

// RefillToCapacity refills the stock to the capacity set when the component was instantiated.
func (m *Machine) RefillToCapacity(tx *engine.Tx) (decimal.Decimal, error) {
	return engine.Call[decimal.Decimal](tx, m.Address, MethodRefillToCapacity, nil)
}
