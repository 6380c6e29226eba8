package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/types"
)

/*
Vault is a handle to a vault owned by the component executing in a frame.
The handle is valid only while its frame is executing.
*/
type Vault struct {
	frame *Frame
	id    types.VaultID
}

func (v *Vault) ID() types.VaultID { return v.id }

func (v *Vault) data() (*resources.VaultData, error) {
	if err := v.frame.usable(); err != nil {
		return nil, fmt.Errorf("vault %s: %w", v.id, err)
	}
	return v.frame.tx.vault(v.id)
}

func (v *Vault) Resource() (types.ResourceAddress, error) {
	vd, err := v.data()
	if err != nil {
		return nil, err
	}
	return vd.Resource, nil
}

func (v *Vault) Amount() (decimal.Decimal, error) {
	vd, err := v.data()
	if err != nil {
		return decimal.Zero, err
	}
	return vd.Amount, nil
}

// Put deposits the whole content of the bucket into the vault.
func (v *Vault) Put(b *Bucket) error {
	vd, err := v.data()
	if err != nil {
		return err
	}
	if err := b.usable(); err != nil {
		return err
	}
	if b.tx != v.frame.tx {
		return fmt.Errorf("bucket belongs to another transaction")
	}
	if !b.resource.Eq(vd.Resource) {
		return fmt.Errorf("%w: can't put %s into vault of %s", ErrTypeMismatch, b.resource, vd.Resource)
	}
	if err := v.frame.tx.authorizeRole(v.frame, vd.Resource, resources.RoleDeposit); err != nil {
		return err
	}
	vd.Amount = vd.Amount.Add(b.amount)
	b.amount = decimal.Zero
	v.frame.tx.markDirty(types.UnitID(v.id))
	return nil
}

// Take withdraws "amount" units from the vault into a new bucket.
func (v *Vault) Take(amount decimal.Decimal) (*Bucket, error) {
	vd, err := v.data()
	if err != nil {
		return nil, err
	}
	rd, err := v.frame.tx.resource(vd.Resource)
	if err != nil {
		return nil, err
	}
	if err := types.ValidateAmount(amount, rd.Divisibility); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	if vd.Amount.LessThan(amount) {
		return nil, fmt.Errorf("%w: vault holds %s, requested %s", ErrInsufficientBalance, vd.Amount, amount)
	}
	if err := v.frame.tx.authorizeRole(v.frame, vd.Resource, resources.RoleWithdraw); err != nil {
		return nil, err
	}
	vd.Amount = vd.Amount.Sub(amount)
	v.frame.tx.markDirty(types.UnitID(v.id))
	return v.frame.tx.newBucket(vd.Resource, rd.Divisibility, amount), nil
}

// TakeAll withdraws the whole content of the vault, empty vault yields empty bucket.
func (v *Vault) TakeAll() (*Bucket, error) {
	amount, err := v.Amount()
	if err != nil {
		return nil, err
	}
	return v.Take(amount)
}

/*
CreateProofOfAmount returns proof of "amount" units held in the vault, the
units stay in the vault.
*/
func (v *Vault) CreateProofOfAmount(amount decimal.Decimal) (*Proof, error) {
	vd, err := v.data()
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: proof amount must be positive, got %s", ErrInvalidAmount, amount)
	}
	if vd.Amount.LessThan(amount) {
		return nil, fmt.Errorf("%w: vault holds %s, proof of %s requested", ErrInsufficientBalance, vd.Amount, amount)
	}
	return &Proof{tx: v.frame.tx, resource: vd.Resource, amount: amount}, nil
}

func (tx *Tx) vault(id types.VaultID) (*resources.VaultData, error) {
	if err := types.UnitID(id).TypeMustBe(types.VaultUnitType); err != nil {
		return nil, fmt.Errorf("invalid vault ID: %w", err)
	}
	u, err := tx.getUnit(types.UnitID(id))
	if err != nil {
		return nil, err
	}
	vd, ok := u.(*resources.VaultData)
	if !ok {
		return nil, fmt.Errorf("unit %s is not a vault", id)
	}
	return vd, nil
}
