/*
Package engine executes transactions against the ledger state.

A transaction is a Go function operating on a *Tx: it may create resources,
instantiate components and call their methods. Component code lives in the
blueprints registered with the ledger, the transaction only chooses which
methods to call. Every resource movement is
staged in the Tx and applied to the state store only when the function
returns without error, all the buckets have been consumed and no component
call failed. Otherwise nothing of the transaction is persisted.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/alphabill-org/alphabill-exchange/state"
	"github.com/alphabill-org/alphabill-exchange/types"
)

// Role is the authorization requirement of a component method.
type Role uint8

const (
	RoleDenied Role = iota // nobody may call the method
	RolePublic             // anybody may call the method
	RoleOwner              // caller must satisfy the owner rule of the component
)

func (r Role) String() string {
	switch r {
	case RolePublic:
		return "PUBLIC"
	case RoleOwner:
		return "OWNER"
	default:
		return "DENIED"
	}
}

type (
	/*
	MethodFunc is the implementation of a blueprint method. It's executed in
	the frame of the component, "arg" is the value passed by the caller and
	the returned value is handed back to the caller.
	*/
	MethodFunc func(f *Frame, arg any) (any, error)

	Method struct {
		Role Role
		Fn   MethodFunc
	}

	/*
	Blueprint is a component type: the code of the components instantiated
	from it. Callers can only choose which method to call and with what
	argument, the code executed is always the one registered with the ledger.
	*/
	Blueprint struct {
		Name string
		// Constructor returns the initial state of a new component.
		Constructor MethodFunc
		Methods     map[string]Method
	}
)

/*
Fn adapts typed function to MethodFunc. Nil argument is passed to fn as the
zero value of A, argument of any other type than A is rejected with
ErrInvalidArgument.
*/
func Fn[A, R any](fn func(f *Frame, arg A) (R, error)) MethodFunc {
	return func(f *Frame, arg any) (any, error) {
		var a A
		if arg != nil {
			v, ok := arg.(A)
			if !ok {
				return nil, fmt.Errorf("%w: got %T, expected %T", ErrInvalidArgument, arg, a)
			}
			a = v
		}
		return fn(f, a)
	}
}

func (bp *Blueprint) isValid() error {
	if bp == nil || bp.Name == "" {
		return errors.New("blueprint must have a name")
	}
	if bp.Constructor == nil {
		return fmt.Errorf("blueprint %q has no constructor", bp.Name)
	}
	for name, m := range bp.Methods {
		if m.Fn == nil {
			return fmt.Errorf("method %s.%s has no implementation", bp.Name, name)
		}
	}
	return nil
}

type (
	Ledger struct {
		mu         sync.Mutex // transactions are executed one at a time
		store      state.Store
		blueprints map[string]*Blueprint
		pending    []*Blueprint // registered by options
		log        zerolog.Logger
	}

	Option func(*Ledger)

	Receipt struct {
		TxID    uuid.UUID
		Updated []types.UnitID // units created or modified by the transaction
	}
)

func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) {
		l.log = log
	}
}

// WithBlueprints registers blueprints, see Register.
func WithBlueprints(bps ...*Blueprint) Option {
	return func(l *Ledger) {
		l.pending = append(l.pending, bps...)
	}
}

func New(store state.Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("state store is nil")
	}
	l := &Ledger{
		store:      store,
		blueprints: make(map[string]*Blueprint),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, bp := range l.pending {
		if err := l.Register(bp); err != nil {
			return nil, err
		}
	}
	l.pending = nil
	return l, nil
}

/*
Register makes the blueprint available for the transactions. It's an error
to register different blueprints with the same name, registering the same
blueprint again is no-op.
*/
func (l *Ledger) Register(bp *Blueprint) error {
	if err := bp.isValid(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.blueprints[bp.Name]; ok && cur != bp {
		return fmt.Errorf("blueprint %q is already registered", bp.Name)
	}
	l.blueprints[bp.Name] = bp
	return nil
}

func (l *Ledger) blueprint(name string) (*Blueprint, error) {
	bp, ok := l.blueprints[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownBlueprint, name)
	}
	return bp, nil
}

/*
Execute runs fn as an atomic transaction. Changes made by fn are committed
to the store only when fn returns nil and the transaction passes the
conservation check (no non-empty buckets left behind).
*/
func (l *Ledger) Execute(ctx context.Context, txo *Transaction, fn func(tx *Tx) error) (*Receipt, error) {
	if txo == nil {
		return nil, errors.New("transaction is nil")
	}
	if txo.ID == uuid.Nil {
		return nil, errors.New("transaction ID is not assigned")
	}
	return l.execute(ctx, txo, fn, true)
}

/*
Preview runs fn as a transaction but never commits it, useful for reading
component state through its (public) methods.
*/
func (l *Ledger) Preview(ctx context.Context, txo *Transaction, fn func(tx *Tx) error) error {
	if txo == nil {
		txo = NewTransaction()
	}
	_, err := l.execute(ctx, txo, fn, false)
	return err
}

/*
Genesis executes the transaction with the "nil" ID, unit IDs generated by
it are the same on every ledger (ie well-known addresses).
*/
func (l *Ledger) Genesis(ctx context.Context, fn func(tx *Tx) error) (*Receipt, error) {
	return l.execute(ctx, &Transaction{ID: uuid.Nil}, fn, true)
}

func (l *Ledger) execute(ctx context.Context, txo *Transaction, fn func(tx *Tx) error, commit bool) (*Receipt, error) {
	signers, err := txo.signerKeyHashes()
	if err != nil {
		return nil, fmt.Errorf("invalid transaction signature: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTx(ctx, l, txo.ID, signers)
	defer tx.done()

	if err := fn(tx); err != nil {
		tx.log.Debug().Err(err).Msg("transaction aborted")
		return nil, err
	}
	if tx.err != nil {
		// component call failed but fn ignored the error
		tx.log.Debug().Err(tx.err).Msg("transaction aborted")
		return nil, tx.err
	}
	if err := tx.finalize(); err != nil {
		tx.log.Debug().Err(err).Msg("transaction rejected")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !commit {
		return &Receipt{TxID: txo.ID}, nil
	}

	changes := tx.changes()
	if err := l.store.Apply(changes); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	rcpt := &Receipt{TxID: txo.ID}
	for _, c := range changes {
		rcpt.Updated = append(rcpt.Updated, c.ID)
	}
	slices.SortFunc(rcpt.Updated, func(a, b types.UnitID) int { return a.Compare(b) })
	tx.log.Debug().Int("units", len(changes)).Msg("transaction committed")
	return rcpt, nil
}
