/*
Package mintable implements the mintable token component: it owns the right
to mint two resources, one created without initial supply and one with
initial supply kept in the component's vault. Minting is possible only from
within the component's own methods.
*/
package mintable

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/engine"
	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/types"
)

const (
	MethodMintLazyTokens       = "mint_lazy_tokens"
	MethodMintInitSupplyTokens = "mint_init_supply_tokens"
	MethodGetInfo              = "get_info"
)

var Blueprint = &engine.Blueprint{
	Name:        "MintableToken",
	Constructor: engine.Fn(construct),
	Methods: map[string]engine.Method{
		MethodMintLazyTokens: {Role: engine.RolePublic, Fn: engine.Fn(func(f *engine.Frame, _ struct{}) (*engine.Bucket, error) {
			return mint(f, func(st *tokenState) types.ResourceAddress { return st.LazyToken }, LazyMintAmount)
		})},
		MethodMintInitSupplyTokens: {Role: engine.RolePublic, Fn: engine.Fn(func(f *engine.Frame, _ struct{}) (*engine.Bucket, error) {
			return mint(f, func(st *tokenState) types.ResourceAddress { return st.InitSupplyToken }, InitSupplyMintAmount)
		})},
		MethodGetInfo: {Role: engine.RolePublic, Fn: engine.Fn(getInfo)},
	},
}

var (
	InitialSupply        = decimal.NewFromInt(1000)
	LazyMintAmount       = decimal.NewFromInt(10)
	InitSupplyMintAmount = decimal.NewFromInt(100)
)

type (
	// Token is a handle of a mintable token component.
	Token struct {
		Address types.ComponentAddress
	}

	Info struct {
		LazyToken       types.ResourceAddress
		InitSupplyToken types.ResourceAddress
		Reserve         decimal.Decimal // initial supply tokens held by the component
	}

	tokenArgs struct {
		LazyToken types.ResourceAddress
		Supply    *engine.Bucket // initial supply of the second token
	}

	tokenState struct {
		_               struct{} `cbor:",toarray"`
		LazyToken       types.ResourceAddress
		InitSupplyToken types.ResourceAddress
		Reserve         types.VaultID
	}
)

/*
roles returns the roles of the resources minted by the component: only the
component may mint and nobody may burn, holder of the minter badge may
change both rules.
*/
func roles(component types.ComponentAddress, updater types.PredicateBytes) resources.Roles {
	r := resources.DefaultRoles()
	r.Mint = resources.RoleRule{Rule: templates.NewGlobalCallerBytes(component), Updater: updater}
	r.Burn = resources.RoleRule{Rule: templates.AlwaysFalseBytes(), Updater: updater}
	r.Recall.Rule = templates.AlwaysTrueBytes()
	return r
}

// Instantiate creates the component and returns it's handle and the minter badge.
func Instantiate(tx *engine.Tx) (*Token, *engine.Bucket, error) {
	res, err := tx.AllocateComponentAddress()
	if err != nil {
		return nil, nil, err
	}

	badgeSpec := resources.NewBadge("minter badge")
	badgeSpec.Roles = roles(res.Address(), templates.AlwaysFalseBytes())
	badge, err := tx.NewResourceWithSupply(badgeSpec, decimal.NewFromInt(1))
	if err != nil {
		return nil, nil, fmt.Errorf("creating minter badge: %w", err)
	}
	minter := templates.NewRequireResourceBytes(badge.Resource())

	lazy, err := tx.NewResource(&resources.ResourceSpec{
		Metadata:     map[string]string{resources.MetadataName: "TheWorksToken", resources.MetadataSymbol: "TWT"},
		Divisibility: resources.DivisibilityNone,
		Roles:        roles(res.Address(), minter),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating lazy token: %w", err)
	}
	supply, err := tx.NewResourceWithSupply(&resources.ResourceSpec{
		Metadata:     map[string]string{resources.MetadataName: "TheWorksInitSupplyToken", resources.MetadataSymbol: "TWIST"},
		Divisibility: resources.DivisibilityNone,
		Roles:        roles(res.Address(), minter),
	}, InitialSupply)
	if err != nil {
		return nil, nil, fmt.Errorf("creating init supply token: %w", err)
	}

	addr, err := tx.Instantiate(Blueprint.Name, res, templates.AlwaysFalseBytes(), tokenArgs{LazyToken: lazy, Supply: supply})
	if err != nil {
		return nil, nil, err
	}
	return &Token{Address: addr}, badge, nil
}

func construct(f *engine.Frame, a tokenArgs) (*tokenState, error) {
	if a.Supply == nil {
		return nil, fmt.Errorf("initial supply is nil")
	}
	v, err := f.NewVault(a.Supply.Resource())
	if err != nil {
		return nil, err
	}
	if err := v.Put(a.Supply); err != nil {
		return nil, err
	}
	return &tokenState{LazyToken: a.LazyToken, InitSupplyToken: a.Supply.Resource(), Reserve: v.ID()}, nil
}

func mint(f *engine.Frame, resource func(*tokenState) types.ResourceAddress, amount decimal.Decimal) (*engine.Bucket, error) {
	st := &tokenState{}
	if err := f.LoadState(st); err != nil {
		return nil, err
	}
	return f.Tx().Mint(resource(st), amount)
}

func getInfo(f *engine.Frame, _ struct{}) (*Info, error) {
	st := &tokenState{}
	if err := f.LoadState(st); err != nil {
		return nil, err
	}
	v, err := f.Vault(st.Reserve)
	if err != nil {
		return nil, err
	}
	reserve, err := v.Amount()
	if err != nil {
		return nil, err
	}
	return &Info{LazyToken: st.LazyToken, InitSupplyToken: st.InitSupplyToken, Reserve: reserve}, nil
}

// MintLazyTokens mints 10 units of the resource created without initial supply.
func (t *Token) MintLazyTokens(tx *engine.Tx) (*engine.Bucket, error) {
	return engine.Call[*engine.Bucket](tx, t.Address, MethodMintLazyTokens, nil)
}

// MintInitSupplyTokens mints 100 units of the resource created with initial supply.
func (t *Token) MintInitSupplyTokens(tx *engine.Tx) (*engine.Bucket, error) {
	return engine.Call[*engine.Bucket](tx, t.Address, MethodMintInitSupplyTokens, nil)
}

func (t *Token) GetInfo(tx *engine.Tx) (*Info, error) {
	return engine.Call[*Info](tx, t.Address, MethodGetInfo, nil)
}
