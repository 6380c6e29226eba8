package engine

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	abhash "github.com/alphabill-org/alphabill-exchange/hash"
)

/*
Transaction is the envelope of a ledger transaction: unique ID and signatures
of the ID. Signers of the transaction satisfy P2PKH access rules in the
root frame of the transaction.
*/
type Transaction struct {
	ID         uuid.UUID
	Signatures [][]byte // 65 byte [R || S || V] secp256k1 signatures of SigHash
}

func NewTransaction() *Transaction {
	return &Transaction{ID: uuid.New()}
}

// SigHash returns the digest signed by the signers of the transaction.
func (t *Transaction) SigHash() []byte {
	return abhash.Sum256(t.ID[:])
}

// Sign adds signature of the transaction ID.
func (t *Transaction) Sign(key *ecdsa.PrivateKey) error {
	if key == nil {
		return errors.New("signing key is nil")
	}
	sig, err := crypto.Sign(t.SigHash(), key)
	if err != nil {
		return fmt.Errorf("signing transaction: %w", err)
	}
	t.Signatures = append(t.Signatures, sig)
	return nil
}

/*
signerKeyHashes recovers public keys from signatures and returns SHA256
hashes of the compressed keys, ie the values P2PKH rules are built from.
*/
func (t *Transaction) signerKeyHashes() ([][]byte, error) {
	digest := t.SigHash()
	pkhs := make([][]byte, 0, len(t.Signatures))
	for i, sig := range t.Signatures {
		pub, err := crypto.SigToPub(digest, sig)
		if err != nil {
			return nil, fmt.Errorf("recovering signer %d: %w", i, err)
		}
		pkhs = append(pkhs, abhash.Sum256(crypto.CompressPubkey(pub)))
	}
	return pkhs, nil
}
