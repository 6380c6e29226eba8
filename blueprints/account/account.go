/*
Package account implements the account component: custody of any resources
on behalf of an owner between the transactions. Anybody may deposit into an
account, withdrawing and proving the holdings requires the owner rule of the
account (typically signature of the owner's key) to be satisfied.
*/
package account

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/engine"
	"github.com/alphabill-org/alphabill-exchange/types"
)

const (
	MethodDeposit      = "deposit"
	MethodDepositBatch = "deposit_batch"
	MethodWithdraw     = "withdraw"
	MethodCreateProof  = "create_proof_of_amount"
	MethodBalance      = "balance"
	MethodBalances     = "balances"
)

var Blueprint = &engine.Blueprint{
	Name: "Account",
	Constructor: engine.Fn(func(f *engine.Frame, _ struct{}) (*accountState, error) {
		return &accountState{}, nil
	}),
	Methods: map[string]engine.Method{
		MethodDeposit:      {Role: engine.RolePublic, Fn: engine.Fn(depositOne)},
		MethodDepositBatch: {Role: engine.RolePublic, Fn: engine.Fn(depositBatch)},
		MethodWithdraw:     {Role: engine.RoleOwner, Fn: engine.Fn(withdraw)},
		MethodCreateProof:  {Role: engine.RoleOwner, Fn: engine.Fn(createProof)},
		MethodBalance:      {Role: engine.RolePublic, Fn: engine.Fn(balance)},
		MethodBalances:     {Role: engine.RolePublic, Fn: engine.Fn(balances)},
	},
}

type (
	// Account is a handle of an account component.
	Account struct {
		Address types.ComponentAddress
	}

	Balance struct {
		Resource types.ResourceAddress
		Amount   decimal.Decimal
	}

	accountState struct {
		_      struct{} `cbor:",toarray"`
		Vaults []*vaultRef // in the order of the first deposit
	}

	vaultRef struct {
		_        struct{} `cbor:",toarray"`
		Resource types.ResourceAddress
		Vault    types.VaultID
	}

	// quantity is the argument of withdraw and create_proof_of_amount
	quantity struct {
		Resource types.ResourceAddress
		Amount   decimal.Decimal
	}
)

// New creates account guarded by the owner rule.
func New(tx *engine.Tx, ownerRule types.PredicateBytes) (*Account, error) {
	addr, err := tx.Instantiate(Blueprint.Name, nil, ownerRule, nil)
	if err != nil {
		return nil, err
	}
	return &Account{Address: addr}, nil
}

func (st *accountState) vaultOf(resource types.ResourceAddress) types.VaultID {
	for _, v := range st.Vaults {
		if v.Resource.Eq(resource) {
			return v.Vault
		}
	}
	return nil
}

func load(f *engine.Frame) (*accountState, error) {
	st := &accountState{}
	if err := f.LoadState(st); err != nil {
		return nil, err
	}
	return st, nil
}

// deposit puts the bucket into the vault of it's resource, creating the vault when needed.
func deposit(f *engine.Frame, st *accountState, b *engine.Bucket) error {
	if b == nil {
		return errors.New("bucket is nil")
	}
	var v *engine.Vault
	var err error
	if id := st.vaultOf(b.Resource()); id != nil {
		v, err = f.Vault(id)
	} else {
		if v, err = f.NewVault(b.Resource()); err == nil {
			st.Vaults = append(st.Vaults, &vaultRef{Resource: b.Resource(), Vault: v.ID()})
			err = f.SaveState(st)
		}
	}
	if err != nil {
		return err
	}
	return v.Put(b)
}

func depositOne(f *engine.Frame, b *engine.Bucket) (struct{}, error) {
	st, err := load(f)
	if err != nil {
		return struct{}{}, err
	}
	return struct{}{}, deposit(f, st, b)
}

func depositBatch(f *engine.Frame, buckets []*engine.Bucket) (struct{}, error) {
	st, err := load(f)
	if err != nil {
		return struct{}{}, err
	}
	for i, b := range buckets {
		if err := deposit(f, st, b); err != nil {
			return struct{}{}, fmt.Errorf("bucket %d: %w", i, err)
		}
	}
	return struct{}{}, nil
}

func ownedVault(f *engine.Frame, resource types.ResourceAddress) (*engine.Vault, error) {
	st, err := load(f)
	if err != nil {
		return nil, err
	}
	id := st.vaultOf(resource)
	if id == nil {
		return nil, fmt.Errorf("%w: account holds no %s", engine.ErrInsufficientBalance, resource)
	}
	return f.Vault(id)
}

func withdraw(f *engine.Frame, q quantity) (*engine.Bucket, error) {
	v, err := ownedVault(f, q.Resource)
	if err != nil {
		return nil, err
	}
	return v.Take(q.Amount)
}

func createProof(f *engine.Frame, q quantity) (*engine.Proof, error) {
	v, err := ownedVault(f, q.Resource)
	if err != nil {
		return nil, err
	}
	return v.CreateProofOfAmount(q.Amount)
}

func balance(f *engine.Frame, resource types.ResourceAddress) (decimal.Decimal, error) {
	st, err := load(f)
	if err != nil {
		return decimal.Zero, err
	}
	id := st.vaultOf(resource)
	if id == nil {
		return decimal.Zero, nil
	}
	v, err := f.Vault(id)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Amount()
}

func balances(f *engine.Frame, _ struct{}) ([]Balance, error) {
	st, err := load(f)
	if err != nil {
		return nil, err
	}
	var r []Balance
	for _, ref := range st.Vaults {
		v, err := f.Vault(ref.Vault)
		if err != nil {
			return nil, err
		}
		amount, err := v.Amount()
		if err != nil {
			return nil, err
		}
		r = append(r, Balance{Resource: ref.Resource, Amount: amount})
	}
	return r, nil
}

func (a *Account) Deposit(tx *engine.Tx, b *engine.Bucket) error {
	_, err := tx.Call(a.Address, MethodDeposit, b)
	return err
}

func (a *Account) DepositBatch(tx *engine.Tx, buckets ...*engine.Bucket) error {
	_, err := tx.Call(a.Address, MethodDepositBatch, buckets)
	return err
}

// Withdraw takes "amount" units of the resource out of the account.
func (a *Account) Withdraw(tx *engine.Tx, resource types.ResourceAddress, amount decimal.Decimal) (*engine.Bucket, error) {
	return engine.Call[*engine.Bucket](tx, a.Address, MethodWithdraw, quantity{Resource: resource, Amount: amount})
}

/*
CreateProofOfAmount returns proof of "amount" units of the resource held by
the account. The units stay in the account.
*/
func (a *Account) CreateProofOfAmount(tx *engine.Tx, resource types.ResourceAddress, amount decimal.Decimal) (*engine.Proof, error) {
	return engine.Call[*engine.Proof](tx, a.Address, MethodCreateProof, quantity{Resource: resource, Amount: amount})
}

// PresentProofOfAmount creates proof of the amount and pushes it into the caller's auth zone.
func (a *Account) PresentProofOfAmount(tx *engine.Tx, resource types.ResourceAddress, amount decimal.Decimal) error {
	p, err := a.CreateProofOfAmount(tx, resource, amount)
	if err != nil {
		return err
	}
	return tx.PushProof(p)
}

// Balance returns amount of the resource held by the account.
func (a *Account) Balance(tx *engine.Tx, resource types.ResourceAddress) (decimal.Decimal, error) {
	return engine.Call[decimal.Decimal](tx, a.Address, MethodBalance, resource)
}

// Balances returns balances of all the resources ever deposited into the account.
func (a *Account) Balances(tx *engine.Tx) ([]Balance, error) {
	return engine.Call[[]Balance](tx, a.Address, MethodBalances, nil)
}
