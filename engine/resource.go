package engine

import (
	"errors"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/types"
)

func (tx *Tx) resource(addr types.ResourceAddress) (*resources.ResourceData, error) {
	if err := types.UnitID(addr).TypeMustBe(types.ResourceUnitType); err != nil {
		return nil, fmt.Errorf("invalid resource address: %w", err)
	}
	u, err := tx.getUnit(types.UnitID(addr))
	if err != nil {
		return nil, err
	}
	rd, ok := u.(*resources.ResourceData)
	if !ok {
		return nil, fmt.Errorf("unit %s is not a resource", addr)
	}
	return rd, nil
}

// authorizeRole checks that the frame satisfies the rule of the resource's role.
func (tx *Tx) authorizeRole(f *Frame, addr types.ResourceAddress, role resources.Role) error {
	rd, err := tx.resource(addr)
	if err != nil {
		return err
	}
	if err := f.authorize(rd.Roles.Get(role).Rule); err != nil {
		return fmt.Errorf("%s of %s: %w", role, addr, err)
	}
	return nil
}

// NewResource declares new resource without initial supply.
func (tx *Tx) NewResource(spec *resources.ResourceSpec) (types.ResourceAddress, error) {
	if err := tx.usable(); err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, errors.New("resource spec is nil")
	}
	if spec.Divisibility > types.MaxDivisibility {
		return nil, fmt.Errorf("divisibility %d exceeds maximum %d", spec.Divisibility, types.MaxDivisibility)
	}
	for _, role := range []resources.Role{resources.RoleMint, resources.RoleBurn, resources.RoleWithdraw, resources.RoleDeposit, resources.RoleRecall} {
		rr := spec.Roles.Get(role)
		if len(rr.Rule) == 0 || len(rr.Updater) == 0 {
			return nil, fmt.Errorf("%s rule and updater must be assigned", role)
		}
	}
	addr := types.ResourceAddress(tx.newUnitID(types.ResourceUnitType))
	if err := tx.addUnit(types.UnitID(addr), resources.NewResourceData(spec)); err != nil {
		return nil, err
	}
	tx.log.Debug().Stringer("resource", addr).Str("name", spec.Metadata[resources.MetadataName]).Msg("resource created")
	return addr, nil
}

/*
NewResourceWithSupply declares new resource and returns bucket with the
initial supply. The initial supply is not subject to the mint rule.
*/
func (tx *Tx) NewResourceWithSupply(spec *resources.ResourceSpec, supply decimal.Decimal) (*Bucket, error) {
	if spec == nil {
		return nil, errors.New("resource spec is nil")
	}
	if err := types.ValidateAmount(supply, spec.Divisibility); err != nil {
		return nil, fmt.Errorf("%w: initial supply: %w", ErrInvalidAmount, err)
	}
	addr, err := tx.NewResource(spec)
	if err != nil {
		return nil, err
	}
	rd, err := tx.resource(addr)
	if err != nil {
		return nil, err
	}
	rd.TotalSupply = supply
	return tx.newBucket(addr, rd.Divisibility, supply), nil
}

/*
Mint creates new units of the resource. The mint rule of the resource is
evaluated in the current frame, ie when called from a component method the
component is the caller.
*/
func (tx *Tx) Mint(addr types.ResourceAddress, amount decimal.Decimal) (*Bucket, error) {
	if err := tx.usable(); err != nil {
		return nil, err
	}
	rd, err := tx.resource(addr)
	if err != nil {
		return nil, err
	}
	if err := types.ValidateAmount(amount, rd.Divisibility); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	if err := tx.authorizeRole(tx.top(), addr, resources.RoleMint); err != nil {
		return nil, err
	}
	rd.TotalSupply = rd.TotalSupply.Add(amount)
	tx.markDirty(types.UnitID(addr))
	tx.top().log.Debug().Stringer("resource", addr).Stringer("amount", amount).Msg("minted")
	return tx.newBucket(addr, rd.Divisibility, amount), nil
}

// Burn destroys the content of the bucket, authorized by the burn rule.
func (tx *Tx) Burn(b *Bucket) error {
	if err := tx.usable(); err != nil {
		return err
	}
	if err := b.usable(); err != nil {
		return err
	}
	if b.tx != tx {
		return errors.New("bucket belongs to another transaction")
	}
	rd, err := tx.resource(b.resource)
	if err != nil {
		return err
	}
	if err := tx.authorizeRole(tx.top(), b.resource, resources.RoleBurn); err != nil {
		return err
	}
	rd.TotalSupply = rd.TotalSupply.Sub(b.amount)
	b.amount = decimal.Zero
	tx.markDirty(types.UnitID(b.resource))
	return nil
}

// UpdateRole replaces the rule of the role, authorized by the updater of the role.
func (tx *Tx) UpdateRole(addr types.ResourceAddress, role resources.Role, rule types.PredicateBytes) error {
	if err := tx.usable(); err != nil {
		return err
	}
	if len(rule) == 0 {
		return errors.New("access rule is empty")
	}
	rd, err := tx.resource(addr)
	if err != nil {
		return err
	}
	rr := rd.Roles.Get(role)
	if rr == nil {
		return fmt.Errorf("unknown role %s", role)
	}
	if err := tx.top().authorize(rr.Updater); err != nil {
		return fmt.Errorf("%s updater of %s: %w", role, addr, err)
	}
	rr.Rule = rule
	tx.markDirty(types.UnitID(addr))
	return nil
}

/*
Recall takes "amount" units out of any vault of the resource, authorized by
the recall rule of the resource rather than by the vault's owner.
*/
func (tx *Tx) Recall(id types.VaultID, amount decimal.Decimal) (*Bucket, error) {
	if err := tx.usable(); err != nil {
		return nil, err
	}
	vd, err := tx.vault(id)
	if err != nil {
		return nil, err
	}
	rd, err := tx.resource(vd.Resource)
	if err != nil {
		return nil, err
	}
	if err := types.ValidateAmount(amount, rd.Divisibility); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	if err := tx.authorizeRole(tx.top(), vd.Resource, resources.RoleRecall); err != nil {
		return nil, err
	}
	if vd.Amount.LessThan(amount) {
		return nil, fmt.Errorf("%w: vault holds %s, requested %s", ErrInsufficientBalance, vd.Amount, amount)
	}
	vd.Amount = vd.Amount.Sub(amount)
	tx.markDirty(types.UnitID(id))
	return tx.newBucket(vd.Resource, rd.Divisibility, amount), nil
}

// ResourceInfo is the public view of a resource manager.
type ResourceInfo struct {
	Address      types.ResourceAddress
	Metadata     map[string]string
	Divisibility uint8
	TotalSupply  decimal.Decimal
}

func (tx *Tx) ResourceInfo(addr types.ResourceAddress) (*ResourceInfo, error) {
	if err := tx.usable(); err != nil {
		return nil, err
	}
	rd, err := tx.resource(addr)
	if err != nil {
		return nil, err
	}
	return &ResourceInfo{
		Address:      addr,
		Metadata:     maps.Clone(rd.Metadata),
		Divisibility: rd.Divisibility,
		TotalSupply:  rd.TotalSupply,
	}, nil
}
