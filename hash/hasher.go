package hash

import (
	"hash"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	abcbor "github.com/alphabill-org/alphabill-exchange/cbor"
)

// Hasher is used by the ledger units to add their state to the state root.
type Hasher interface {
	Write(any)
	WriteRaw([]byte)
	WriteAmount(decimal.Decimal)
	Sum() ([]byte, error)
}

/*
New creates "hash calculator" using given hash function.
Values written to the hash are encoded as CBOR before hashing.
*/
func New(h hash.Hash) *Hash {
	return &Hash{h: h, enc: abcbor.EncMode().NewEncoder(h)}
}

type Hash struct {
	h   hash.Hash
	enc *cbor.Encoder
	err error
}

/*
Write serializes argument as CBOR and adds it to the hash.
*/
func (h *Hash) Write(v any) {
	if h.err != nil {
		return
	}
	h.err = h.enc.Encode(v)
}

/*
WriteRaw adds the argument as is (ie raw bytes, without additional encoding) to the hash.
*/
func (h *Hash) WriteRaw(d []byte) {
	if h.err != nil {
		return
	}
	_, h.err = h.h.Write(d)
}

/*
WriteAmount adds the quantity to the hash in its canonical text form, so
amounts equal in value give the same hash no matter the exponent they
carry (ie "1.50" and "1.5" after decimal arithmetic).
*/
func (h *Hash) WriteAmount(d decimal.Decimal) {
	h.Write(d.String())
}

func (h *Hash) Reset() {
	h.h.Reset()
	h.err = nil
	h.enc = abcbor.EncMode().NewEncoder(h.h)
}

/*
Sum returns the hash value calculated and first error (if any) that happened
during the hashing (in case of non-nil error the hash value is not valid).
*/
func (h Hash) Sum() ([]byte, error) {
	return h.h.Sum(nil), h.err
}
