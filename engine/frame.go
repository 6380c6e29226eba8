package engine

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/cbor"
	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
	"github.com/alphabill-org/alphabill-exchange/txsystem/components"
	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/types"
)

/*
Frame is the execution context of a component method (or of the transaction
itself in case of the root frame). Each frame has its own auth zone: proofs
pushed into it are visible only to the calls made from this frame.

Frame (and the vaults opened through it) can be used only while it is the
executing frame: not while it waits for a call it made, and never after the
method has returned.
*/
type Frame struct {
	tx       *Tx
	actor    types.ComponentAddress // nil for the root frame
	proofs   []*Proof
	log      zerolog.Logger
	returned bool
}

var _ templates.Environment = (*frameEnv)(nil)

// Actor returns the address of the component executing in the frame.
func (f *Frame) Actor() types.ComponentAddress {
	return f.actor
}

// Log returns logger with the component address as a field.
func (f *Frame) Log() *zerolog.Logger {
	return &f.log
}

// Tx returns the transaction the frame belongs to, for minting and calling other components.
func (f *Frame) Tx() *Tx {
	return f.tx
}

func (f *Frame) usable() error {
	if err := f.tx.usable(); err != nil {
		return err
	}
	if f.returned {
		return fmt.Errorf("%w: method has returned", ErrFrameInactive)
	}
	if f != f.tx.top() {
		return fmt.Errorf("%w: waiting for a call to return", ErrFrameInactive)
	}
	return nil
}

func (f *Frame) isRoot() bool {
	return f.actor == nil
}

func (f *Frame) component() (*components.ComponentData, error) {
	if err := f.usable(); err != nil {
		return nil, err
	}
	if f.isRoot() {
		return nil, fmt.Errorf("root frame has no component state")
	}
	return f.tx.component(f.actor)
}

// LoadState decodes the state of the component into v.
func (f *Frame) LoadState(v any) error {
	cd, err := f.component()
	if err != nil {
		return err
	}
	if err := cbor.Unmarshal(cd.State, v); err != nil {
		return fmt.Errorf("decoding state of %s: %w", f.actor, err)
	}
	return nil
}

// SaveState replaces the state of the component with v.
func (f *Frame) SaveState(v any) error {
	cd, err := f.component()
	if err != nil {
		return err
	}
	buf, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding state of %s: %w", f.actor, err)
	}
	cd.State = buf
	f.tx.markDirty(types.UnitID(f.actor))
	return nil
}

// NewVault creates empty vault for the resource, owned by the component executing in the frame.
func (f *Frame) NewVault(resource types.ResourceAddress) (*Vault, error) {
	if err := f.usable(); err != nil {
		return nil, err
	}
	if f.isRoot() {
		return nil, fmt.Errorf("vault can be created only by a component")
	}
	if _, err := f.tx.resource(resource); err != nil {
		return nil, err
	}
	id := types.VaultID(f.tx.newUnitID(types.VaultUnitType))
	if err := f.tx.addUnit(types.UnitID(id), resources.NewVaultData(resource, f.actor)); err != nil {
		return nil, err
	}
	return &Vault{frame: f, id: id}, nil
}

// Vault returns vault owned by the component executing in the frame.
func (f *Frame) Vault(id types.VaultID) (*Vault, error) {
	if err := f.usable(); err != nil {
		return nil, err
	}
	vd, err := f.tx.vault(id)
	if err != nil {
		return nil, err
	}
	if f.isRoot() || !bytes.Equal(vd.OwnerID, f.actor) {
		return nil, fmt.Errorf("%w: %s", ErrNotOwner, id)
	}
	return &Vault{frame: f, id: id}, nil
}

/*
AuthorizeWithAmount creates proof of "amount" units from the vault and
keeps it in the auth zone of the frame for the duration of fn. The proof is
removed when fn returns, whether it failed or not.
*/
func (f *Frame) AuthorizeWithAmount(v *Vault, amount decimal.Decimal, fn func() error) error {
	if err := f.usable(); err != nil {
		return err
	}
	if v.frame != f {
		return fmt.Errorf("vault %s belongs to another frame", v.id)
	}
	p, err := v.CreateProofOfAmount(amount)
	if err != nil {
		return err
	}
	f.proofs = append(f.proofs, p)
	defer f.dropProof(p)
	return fn()
}

func (f *Frame) dropProof(p *Proof) {
	f.proofs = slices.DeleteFunc(f.proofs, func(x *Proof) bool { return x == p })
}

// frameEnv evaluates access rules in the context of the frame.
type frameEnv struct {
	f *Frame
}

func (e frameEnv) HasProof(resource types.ResourceAddress, amount decimal.Decimal) bool {
	total := decimal.Zero
	for _, p := range e.f.proofs {
		if p.validFor(e.f.tx) && p.resource.Eq(resource) {
			total = total.Add(p.amount)
		}
	}
	if amount.IsZero() {
		return total.IsPositive()
	}
	return total.GreaterThanOrEqual(amount)
}

func (e frameEnv) CallerIs(component types.ComponentAddress) bool {
	return !e.f.isRoot() && e.f.actor.Eq(component)
}

func (e frameEnv) SignedBy(pubKeyHash []byte) bool {
	if !e.f.isRoot() {
		return false
	}
	for _, s := range e.f.tx.signers {
		if bytes.Equal(s, pubKeyHash) {
			return true
		}
	}
	return false
}

// authorize returns ErrUnauthorized when the rule is not satisfied in the frame.
func (f *Frame) authorize(rule types.PredicateBytes) error {
	ok, err := templates.Evaluate(rule, frameEnv{f: f})
	if err != nil {
		return fmt.Errorf("%w: evaluating access rule: %w", ErrUnauthorized, err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}
