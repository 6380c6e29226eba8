package ledger

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/alphabill-exchange/blueprints/account"
	"github.com/alphabill-org/alphabill-exchange/blueprints/faucet"
	"github.com/alphabill-org/alphabill-exchange/engine"
	"github.com/alphabill-org/alphabill-exchange/state"
	"github.com/alphabill-org/alphabill-exchange/testutils/sig"
)

/*
New returns ledger after genesis, with the account blueprint and "bps"
registered. Ledger logs into the test log.
*/
func New(t *testing.T, bps ...*engine.Blueprint) (*engine.Ledger, *state.MemStore) {
	t.Helper()
	store := state.NewMemStore()
	log := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.InfoLevel)
	l, err := engine.New(store, engine.WithLogger(log), engine.WithBlueprints(append(bps, account.Blueprint)...))
	require.NoError(t, err)
	_, err = faucet.Genesis(context.Background(), l)
	require.NoError(t, err)
	return l, store
}

// Execute runs fn as a transaction signed by "signers".
func Execute(t *testing.T, l *engine.Ledger, fn func(tx *engine.Tx) error, signers ...*sig.Signer) error {
	t.Helper()
	txo := engine.NewTransaction()
	for _, s := range signers {
		require.NoError(t, txo.Sign(s.Key))
	}
	_, err := l.Execute(context.Background(), txo, fn)
	return err
}

/*
NewAccount creates account owned by the signer, holding "xrdFree" bags of
XRD from the faucet.
*/
func NewAccount(t *testing.T, l *engine.Ledger, owner *sig.Signer, xrdFree int) *account.Account {
	t.Helper()
	var acc *account.Account
	require.NoError(t, Execute(t, l, func(tx *engine.Tx) (err error) {
		if acc, err = account.New(tx, owner.OwnerRule()); err != nil {
			return err
		}
		for range xrdFree {
			b, err := faucet.Free(tx)
			if err != nil {
				return err
			}
			if err := acc.Deposit(tx, b); err != nil {
				return err
			}
		}
		return nil
	}))
	return acc
}
