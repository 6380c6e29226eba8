package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alphabill-org/alphabill-exchange/types"
)

/*
Bucket is a transient quantity of a resource moving between the caller and
components within a transaction. All the buckets must be empty when the
transaction ends, resources can't be created or lost by forgetting them.
*/
type Bucket struct {
	tx           *Tx
	id           int
	resource     types.ResourceAddress
	divisibility uint8
	amount       decimal.Decimal
}

/*
Proof is evidence that the creator holds an amount of a resource. Proofs
satisfy "require resource" access rules while they are in an auth zone of
the transaction which created them, proof can't be carried over into
another transaction.
*/
type Proof struct {
	tx       *Tx
	resource types.ResourceAddress
	amount   decimal.Decimal
}

func (tx *Tx) newBucket(resource types.ResourceAddress, divisibility uint8, amount decimal.Decimal) *Bucket {
	b := &Bucket{
		tx:           tx,
		id:           len(tx.buckets),
		resource:     resource,
		divisibility: divisibility,
		amount:       amount,
	}
	tx.buckets = append(tx.buckets, b)
	return b
}

func (b *Bucket) Resource() types.ResourceAddress { return b.resource }

func (b *Bucket) Amount() decimal.Decimal { return b.amount }

func (b *Bucket) IsEmpty() bool { return b.amount.IsZero() }

func (b *Bucket) String() string {
	return fmt.Sprintf("bucket %d: %s of %s", b.id, b.amount, b.resource)
}

// Take moves "amount" units into a new bucket.
func (b *Bucket) Take(amount decimal.Decimal) (*Bucket, error) {
	if err := b.usable(); err != nil {
		return nil, err
	}
	if err := types.ValidateAmount(amount, b.divisibility); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	if b.amount.LessThan(amount) {
		return nil, fmt.Errorf("%w: bucket holds %s, requested %s", ErrInsufficientBalance, b.amount, amount)
	}
	b.amount = b.amount.Sub(amount)
	return b.tx.newBucket(b.resource, b.divisibility, amount), nil
}

// TakeAll moves the whole content of b into a new bucket.
func (b *Bucket) TakeAll() (*Bucket, error) {
	return b.Take(b.amount)
}

// Put moves the whole content of "other" into b, both must hold the same resource.
func (b *Bucket) Put(other *Bucket) error {
	if err := b.usable(); err != nil {
		return err
	}
	if other == nil {
		return errors.New("bucket is nil")
	}
	if other.tx != b.tx {
		return errors.New("bucket belongs to another transaction")
	}
	if !other.resource.Eq(b.resource) {
		return fmt.Errorf("%w: can't put %s into bucket of %s", ErrTypeMismatch, other.resource, b.resource)
	}
	b.amount = b.amount.Add(other.amount)
	other.amount = decimal.Zero
	return nil
}

// CreateProof returns proof of the whole content of the bucket.
func (b *Bucket) CreateProof() (*Proof, error) {
	if err := b.usable(); err != nil {
		return nil, err
	}
	if b.IsEmpty() {
		return nil, fmt.Errorf("%w: can't create proof from empty bucket", ErrInsufficientBalance)
	}
	return &Proof{tx: b.tx, resource: b.resource, amount: b.amount}, nil
}

func (b *Bucket) usable() error {
	if b == nil {
		return errors.New("bucket is nil")
	}
	if b.tx.finished {
		return ErrTxDone
	}
	return nil
}

// validFor returns true when the proof may be used as evidence in tx.
func (p *Proof) validFor(tx *Tx) bool {
	return p.tx == tx && !tx.finished
}

func (p *Proof) Resource() types.ResourceAddress { return p.resource }

func (p *Proof) Amount() decimal.Decimal { return p.amount }

/*
PushProof adds the proof to the auth zone of the current frame, it stays
there until the frame ends. In the root frame this means until the end of
the transaction.
*/
func (tx *Tx) PushProof(p *Proof) error {
	if err := tx.usable(); err != nil {
		return err
	}
	if p == nil {
		return errors.New("proof is nil")
	}
	if !p.validFor(tx) {
		return fmt.Errorf("%w: proof was created by another transaction", ErrInvalidProof)
	}
	f := tx.top()
	f.proofs = append(f.proofs, p)
	return nil
}

// PresentBucket creates proof of the bucket's content and pushes it into the current auth zone.
func (tx *Tx) PresentBucket(b *Bucket) error {
	p, err := b.CreateProof()
	if err != nil {
		return err
	}
	return tx.PushProof(p)
}
