package sig

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	abhash "github.com/alphabill-org/alphabill-exchange/hash"
	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
	"github.com/alphabill-org/alphabill-exchange/types"
)

// Signer is a secp256k1 key pair of a test user.
type Signer struct {
	Key        *ecdsa.PrivateKey
	PubKey     []byte // compressed public key
	PubKeyHash []byte
}

func NewSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal("failed to generate key:", err)
	}
	pub := crypto.CompressPubkey(&key.PublicKey)
	return &Signer{Key: key, PubKey: pub, PubKeyHash: abhash.Sum256(pub)}
}

// OwnerRule returns P2PKH access rule satisfied by transactions signed by the signer.
func (s *Signer) OwnerRule() types.PredicateBytes {
	return templates.NewP2pkh256BytesFromKeyHash(s.PubKeyHash)
}
