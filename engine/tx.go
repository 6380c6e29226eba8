package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	abhash "github.com/alphabill-org/alphabill-exchange/hash"
	"github.com/alphabill-org/alphabill-exchange/state"
	"github.com/alphabill-org/alphabill-exchange/types"
)

/*
Tx is a transaction in progress. All the state read by the transaction is
copied into the Tx and modified there, the store is only updated when the
transaction commits.
*/
type Tx struct {
	ctx     context.Context
	ledger  *Ledger
	id      uuid.UUID
	signers [][]byte
	log     zerolog.Logger

	units map[string]types.UnitData // working copies of the units read or created
	dirty []types.UnitID            // units to be written on commit, in the order of modification

	frames       []*Frame
	buckets      []*Bucket
	reservations []*Reservation
	counter      uint32

	err      error // first failure of a component call, poisons the tx
	finished bool
}

func newTx(ctx context.Context, l *Ledger, id uuid.UUID, signers [][]byte) *Tx {
	tx := &Tx{
		ctx:     ctx,
		ledger:  l,
		id:      id,
		signers: signers,
		log:     l.log.With().Str("tx", id.String()).Logger(),
		units:   make(map[string]types.UnitData),
	}
	tx.frames = []*Frame{{tx: tx, log: tx.log}}
	return tx
}

// ID returns the ID of the transaction.
func (tx *Tx) ID() uuid.UUID {
	return tx.id
}

// Context returns the context the transaction is executed in.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

func (tx *Tx) done() {
	tx.finished = true
}

// top returns the frame currently executing.
func (tx *Tx) top() *Frame {
	return tx.frames[len(tx.frames)-1]
}

/*
Caller returns the address of the component currently executing, nil when
the transaction itself (the root frame) is executing.
*/
func (tx *Tx) Caller() types.ComponentAddress {
	return tx.top().actor
}

// fail records the first failure, after that the transaction can't commit.
func (tx *Tx) fail(err error) error {
	if tx.err == nil {
		tx.err = err
	}
	return err
}

// usable returns error when the transaction is finished or failed.
func (tx *Tx) usable() error {
	if tx.finished {
		return ErrTxDone
	}
	if tx.err != nil {
		return fmt.Errorf("transaction failed: %w", tx.err)
	}
	if err := tx.ctx.Err(); err != nil {
		return tx.fail(err)
	}
	return nil
}

/*
DeriveUnitID returns the n-th unit ID generated by transaction txID. Genesis
transaction has "nil" ID thus the IDs it generates are well-known.
*/
func DeriveUnitID(txID uuid.UUID, n uint32, typePart []byte) types.UnitID {
	buf := make([]byte, 0, len(txID)+4)
	buf = append(buf, txID[:]...)
	buf = binary.BigEndian.AppendUint32(buf, n)
	return types.NewUnitID(abhash.Sum256(buf), typePart)
}

func (tx *Tx) newUnitID(typePart []byte) types.UnitID {
	id := DeriveUnitID(tx.id, tx.counter, typePart)
	tx.counter++
	return id
}

// getUnit returns the working copy of the unit, loading it from the store if needed.
func (tx *Tx) getUnit(id types.UnitID) (types.UnitData, error) {
	if u, ok := tx.units[string(id)]; ok {
		return u, nil
	}
	u, err := tx.ledger.store.GetUnit(id)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return nil, fmt.Errorf("%w: unit %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("loading unit %s: %w", id, err)
	}
	tx.units[string(id)] = u
	return u, nil
}

// addUnit adds new unit to the transaction, the ID must not be in use.
func (tx *Tx) addUnit(id types.UnitID, data types.UnitData) error {
	if _, err := tx.getUnit(id); err == nil {
		return fmt.Errorf("unit %s already exists", id)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	tx.units[string(id)] = data
	tx.markDirty(id)
	return nil
}

func (tx *Tx) markDirty(id types.UnitID) {
	for _, d := range tx.dirty {
		if d.Eq(id) {
			return
		}
	}
	tx.dirty = append(tx.dirty, id)
}

func (tx *Tx) changes() []state.Change {
	changes := make([]state.Change, 0, len(tx.dirty))
	for _, id := range tx.dirty {
		changes = append(changes, state.Change{ID: id, Data: tx.units[string(id)]})
	}
	return changes
}

/*
finalize checks that the transaction may be committed: all the address
reservations are used and no resources are left in buckets.
*/
func (tx *Tx) finalize() error {
	var errs error
	for _, r := range tx.reservations {
		if !r.used {
			errs = multierror.Append(errs, fmt.Errorf("address reservation %s was not used", r.address))
		}
	}
	var leaks error
	for _, b := range tx.buckets {
		if !b.IsEmpty() {
			leaks = multierror.Append(leaks, fmt.Errorf("bucket %d holds %s of %s", b.id, b.amount, b.resource))
		}
	}
	if leaks != nil {
		errs = multierror.Append(errs, fmt.Errorf("%w: %w", ErrDanglingBucket, leaks))
	}
	return errs
}
