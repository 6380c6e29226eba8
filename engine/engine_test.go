package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
	"github.com/alphabill-org/alphabill-exchange/state"
	"github.com/alphabill-org/alphabill-exchange/testutils/sig"
	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/types"
)

/*
keeper is minimal component used by the tests: it keeps a single vault,
anybody may deposit, only the owner may withdraw.
*/
var keeperBlueprint = &Blueprint{
	Name: "keeper",
	Constructor: Fn(func(f *Frame, resource types.ResourceAddress) (*keeperState, error) {
		v, err := f.NewVault(resource)
		if err != nil {
			return nil, err
		}
		return &keeperState{Vault: v.ID()}, nil
	}),
	Methods: map[string]Method{
		"deposit": {Role: RolePublic, Fn: Fn(func(f *Frame, b *Bucket) (struct{}, error) {
			v, err := keeperVault(f)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, v.Put(b)
		})},
		"withdraw": {Role: RoleOwner, Fn: Fn(func(f *Frame, amount decimal.Decimal) (*Bucket, error) {
			v, err := keeperVault(f)
			if err != nil {
				return nil, err
			}
			return v.Take(amount)
		})},
		"balance": {Role: RolePublic, Fn: Fn(func(f *Frame, _ struct{}) (decimal.Decimal, error) {
			v, err := keeperVault(f)
			if err != nil {
				return decimal.Zero, err
			}
			return v.Amount()
		})},
		"vault_id": {Role: RolePublic, Fn: Fn(func(f *Frame, _ struct{}) (types.VaultID, error) {
			v, err := keeperVault(f)
			if err != nil {
				return nil, err
			}
			return v.ID(), nil
		})},
		"prove": {Role: RoleOwner, Fn: Fn(func(f *Frame, amount decimal.Decimal) (*Proof, error) {
			v, err := keeperVault(f)
			if err != nil {
				return nil, err
			}
			return v.CreateProofOfAmount(amount)
		})},
		// mints into the keeper's vault
		"mint": {Role: RolePublic, Fn: Fn(func(f *Frame, amount decimal.Decimal) (struct{}, error) {
			v, err := keeperVault(f)
			if err != nil {
				return struct{}{}, err
			}
			res, err := v.Resource()
			if err != nil {
				return struct{}{}, err
			}
			b, err := f.Tx().Mint(res, amount)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, v.Put(b)
		})},
		"locked": {Role: RoleDenied, Fn: Fn(func(f *Frame, _ struct{}) (struct{}, error) {
			return struct{}{}, nil
		})},
		// opens vault by ID and returns it's amount
		"open": {Role: RolePublic, Fn: Fn(func(f *Frame, id types.VaultID) (decimal.Decimal, error) {
			v, err := f.Vault(id)
			if err != nil {
				return decimal.Zero, err
			}
			return v.Amount()
		})},
		"relay": {Role: RolePublic, Fn: Fn(relay)},
		"leak":  {Role: RolePublic, Fn: Fn(leak)},
		"drain": {Role: RolePublic, Fn: Fn(func(f *Frame, v *Vault) (*Bucket, error) { return v.TakeAll() })},
		"lend":  {Role: RolePublic, Fn: Fn(lend)},
	},
}

type keeperState struct {
	_     struct{} `cbor:",toarray"`
	Vault types.VaultID
}

// relayArgs make the keeper withdraw from Target, with proof of it's own
// holdings in the auth zone when Badge is set.
type relayArgs struct {
	Target types.ComponentAddress
	Amount decimal.Decimal
	Badge  bool
}

var errProofLeaked = errors.New("proof was not dropped")

func relay(f *Frame, a relayArgs) (b *Bucket, err error) {
	if !a.Badge {
		return keeperWithdraw(f.Tx(), a.Target, a.Amount)
	}
	v, err := keeperVault(f)
	if err != nil {
		return nil, err
	}
	err = f.AuthorizeWithAmount(v, decimal.NewFromInt(1), func() (err error) {
		b, err = keeperWithdraw(f.Tx(), a.Target, a.Amount)
		return err
	})
	if len(f.proofs) != 0 {
		return nil, errProofLeaked
	}
	if err != nil {
		return nil, err
	}
	if amount, _ := v.Amount(); !amount.Equal(decimal.NewFromInt(1)) {
		return nil, errors.New("badge must stay in the vault")
	}
	return b, nil
}

// leakedHandles are the handles a (misbehaving) method hands out to it's caller.
type leakedHandles struct {
	Frame *Frame
	Vault *Vault
}

func leak(f *Frame, _ struct{}) (*leakedHandles, error) {
	v, err := keeperVault(f)
	if err != nil {
		return nil, err
	}
	return &leakedHandles{Frame: f, Vault: v}, nil
}

// lend passes the keeper's vault handle to the "drain" method of another keeper.
func lend(f *Frame, borrower types.ComponentAddress) (*Bucket, error) {
	v, err := keeperVault(f)
	if err != nil {
		return nil, err
	}
	return Call[*Bucket](f.Tx(), borrower, "drain", v)
}

func newKeeper(tx *Tx, res *Reservation, owner types.PredicateBytes, resource types.ResourceAddress) (types.ComponentAddress, error) {
	return tx.Instantiate(keeperBlueprint.Name, res, owner, resource)
}

func keeperVault(f *Frame) (*Vault, error) {
	var st keeperState
	if err := f.LoadState(&st); err != nil {
		return nil, err
	}
	return f.Vault(st.Vault)
}

func keeperDeposit(tx *Tx, addr types.ComponentAddress, b *Bucket) error {
	_, err := tx.Call(addr, "deposit", b)
	return err
}

func keeperWithdraw(tx *Tx, addr types.ComponentAddress, amount decimal.Decimal) (*Bucket, error) {
	return Call[*Bucket](tx, addr, "withdraw", amount)
}

func keeperBalance(t *testing.T, l *Ledger, addr types.ComponentAddress) decimal.Decimal {
	t.Helper()
	var amount decimal.Decimal
	require.NoError(t, l.Preview(context.Background(), nil, func(tx *Tx) (err error) {
		amount, err = Call[decimal.Decimal](tx, addr, "balance", nil)
		return err
	}))
	return amount
}

func newTestLedger(t *testing.T) (*Ledger, *state.MemStore) {
	t.Helper()
	store := state.NewMemStore()
	l, err := New(store, WithBlueprints(keeperBlueprint))
	require.NoError(t, err)
	return l, store
}

func testToken() *resources.ResourceSpec {
	return resources.NewFungible(2, map[string]string{resources.MetadataName: "test token", resources.MetadataSymbol: "TT"})
}

// setupKeeper creates token with supply of 100 and keeper holding all of it.
func setupKeeper(t *testing.T, l *Ledger, owner types.PredicateBytes) (types.ResourceAddress, types.ComponentAddress) {
	t.Helper()
	var token types.ResourceAddress
	var keeper types.ComponentAddress
	_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		b, err := tx.NewResourceWithSupply(testToken(), decimal.NewFromInt(100))
		if err != nil {
			return err
		}
		token = b.Resource()
		if keeper, err = newKeeper(tx, nil, owner, token); err != nil {
			return err
		}
		return keeperDeposit(tx, keeper, b)
	})
	require.NoError(t, err)
	return token, keeper
}

func Test_New(t *testing.T) {
	l, err := New(nil)
	require.EqualError(t, err, `state store is nil`)
	require.Nil(t, l)

	l, err = New(state.NewMemStore())
	require.NoError(t, err)
	require.NoError(t, l.Register(keeperBlueprint))
	require.NoError(t, l.Register(keeperBlueprint), "registering the same blueprint again")
	require.EqualError(t, l.Register(&Blueprint{Name: "keeper", Constructor: keeperBlueprint.Constructor}), `blueprint "keeper" is already registered`)
	require.EqualError(t, l.Register(&Blueprint{}), `blueprint must have a name`)
	require.EqualError(t, l.Register(&Blueprint{Name: "empty"}), `blueprint "empty" has no constructor`)
	require.EqualError(t, l.Register(&Blueprint{
		Name:        "broken",
		Constructor: keeperBlueprint.Constructor,
		Methods:     map[string]Method{"run": {Role: RolePublic}},
	}), `method broken.run has no implementation`)

	l, err = New(state.NewMemStore(), WithBlueprints(keeperBlueprint, &Blueprint{Name: "empty"}))
	require.EqualError(t, err, `blueprint "empty" has no constructor`)
	require.Nil(t, l)
}

func Test_Fn(t *testing.T) {
	var got decimal.Decimal
	fn := Fn(func(f *Frame, arg decimal.Decimal) (string, error) {
		got = arg
		return arg.String(), nil
	})

	r, err := fn(nil, decimal.NewFromInt(5))
	require.NoError(t, err)
	require.Equal(t, "5", r)

	r, err = fn(nil, nil)
	require.NoError(t, err)
	require.Equal(t, "0", r, "nil is passed as zero value")

	got = decimal.NewFromInt(42)
	r, err = fn(nil, "5")
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.EqualError(t, err, `invalid argument: got string, expected decimal.Decimal`)
	require.Nil(t, r)
	require.Equal(t, "42", got.String(), "fn must not be called")
}

func Test_Execute_commit(t *testing.T) {
	l, store := newTestLedger(t)

	_, err := l.Execute(context.Background(), nil, func(tx *Tx) error { return nil })
	require.EqualError(t, err, `transaction is nil`)
	_, err = l.Execute(context.Background(), &Transaction{}, func(tx *Tx) error { return nil })
	require.EqualError(t, err, `transaction ID is not assigned`)

	token, keeper := setupKeeper(t, l, templates.AlwaysTrueBytes())
	// resource, component and vault
	require.Equal(t, 3, store.Len())
	require.True(t, decimal.NewFromInt(100).Equal(keeperBalance(t, l, keeper)))

	var info *ResourceInfo
	require.NoError(t, l.Preview(context.Background(), nil, func(tx *Tx) (err error) {
		info, err = tx.ResourceInfo(token)
		return err
	}))
	require.Equal(t, "100", info.TotalSupply.String())
	require.EqualValues(t, 2, info.Divisibility)
	require.Equal(t, "TT", info.Metadata[resources.MetadataSymbol])

	txo := NewTransaction()
	rcpt, err := l.Execute(context.Background(), txo, func(tx *Tx) error {
		b, err := keeperWithdraw(tx, keeper, decimal.RequireFromString("0.5"))
		if err != nil {
			return err
		}
		return keeperDeposit(tx, keeper, b)
	})
	require.NoError(t, err)
	require.Equal(t, txo.ID, rcpt.TxID)
	require.Len(t, rcpt.Updated, 1, "only the vault was modified")
	require.True(t, rcpt.Updated[0].HasType(types.VaultUnitType))
}

func Test_Execute_rollback(t *testing.T) {
	l, store := newTestLedger(t)
	_, keeper := setupKeeper(t, l, templates.AlwaysTrueBytes())
	root, err := store.Root()
	require.NoError(t, err)

	requireUnchanged := func(t *testing.T) {
		t.Helper()
		r, err := store.Root()
		require.NoError(t, err)
		require.Equal(t, root, r)
		require.Equal(t, 3, store.Len())
	}

	t.Run("fn returns error", func(t *testing.T) {
		expErr := errors.New("stop")
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			b, err := keeperWithdraw(tx, keeper, decimal.NewFromInt(10))
			if err != nil {
				return err
			}
			if err := keeperDeposit(tx, keeper, b); err != nil {
				return err
			}
			return expErr
		})
		require.ErrorIs(t, err, expErr)
		requireUnchanged(t)
	})

	t.Run("dangling bucket", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			b, err := keeperWithdraw(tx, keeper, decimal.NewFromInt(10))
			if err != nil {
				return err
			}
			_, err = b.Take(decimal.NewFromInt(4))
			return err
		})
		require.ErrorIs(t, err, ErrDanglingBucket)
		require.ErrorContains(t, err, `holds 6 of`)
		require.ErrorContains(t, err, `holds 4 of`)
		requireUnchanged(t)
	})

	t.Run("failed call is not ignored", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			b, err := keeperWithdraw(tx, keeper, decimal.NewFromInt(10))
			if err != nil {
				return err
			}
			if err := keeperDeposit(tx, keeper, b); err != nil {
				return err
			}
			// withdrawing more than the vault holds fails, error is swallowed
			_, _ = keeperWithdraw(tx, keeper, decimal.NewFromInt(1000))
			return nil
		})
		require.ErrorIs(t, err, ErrInsufficientBalance)
		requireUnchanged(t)
	})

	t.Run("operations after failure", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			_, _ = tx.Call(keeper, "no such method", nil)
			_, err := tx.NewResource(testToken())
			return err
		})
		require.ErrorIs(t, err, ErrUnknownMethod)
		require.ErrorContains(t, err, `transaction failed`)
		requireUnchanged(t)
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		_, err := l.Execute(ctx, NewTransaction(), func(tx *Tx) error {
			b, err := keeperWithdraw(tx, keeper, decimal.NewFromInt(10))
			if err != nil {
				return err
			}
			cancel()
			return keeperDeposit(tx, keeper, b)
		})
		require.ErrorIs(t, err, context.Canceled)
		requireUnchanged(t)
	})

	t.Run("preview", func(t *testing.T) {
		require.NoError(t, l.Preview(context.Background(), nil, func(tx *Tx) error {
			b, err := keeperWithdraw(tx, keeper, decimal.NewFromInt(10))
			if err != nil {
				return err
			}
			if _, err := tx.NewResource(testToken()); err != nil {
				return err
			}
			return keeperDeposit(tx, keeper, b)
		}))
		requireUnchanged(t)
	})
}

func Test_Execute_tx_done(t *testing.T) {
	l, _ := newTestLedger(t)
	var leaked *Tx
	var bucket *Bucket
	_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) (err error) {
		leaked = tx
		bucket, err = tx.NewResourceWithSupply(testToken(), decimal.Zero)
		return err
	})
	require.NoError(t, err)
	_, err = leaked.NewResource(testToken())
	require.ErrorIs(t, err, ErrTxDone)
	_, err = bucket.Take(decimal.Zero)
	require.ErrorIs(t, err, ErrTxDone)
}

func Test_Call_roles(t *testing.T) {
	l, _ := newTestLedger(t)

	var badge types.ResourceAddress
	var badgeHolder, keeper types.ComponentAddress
	_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		b, err := tx.NewResourceWithSupply(resources.NewBadge("owner badge"), decimal.NewFromInt(1))
		if err != nil {
			return err
		}
		badge = b.Resource()
		if badgeHolder, err = newKeeper(tx, nil, templates.AlwaysTrueBytes(), badge); err != nil {
			return err
		}
		if err := keeperDeposit(tx, badgeHolder, b); err != nil {
			return err
		}
		tokens, err := tx.NewResourceWithSupply(testToken(), decimal.NewFromInt(50))
		if err != nil {
			return err
		}
		if keeper, err = newKeeper(tx, nil, templates.NewRequireResourceBytes(badge), tokens.Resource()); err != nil {
			return err
		}
		return keeperDeposit(tx, keeper, tokens)
	})
	require.NoError(t, err)

	t.Run("owner method without proof", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			_, err := keeperWithdraw(tx, keeper, decimal.NewFromInt(1))
			return err
		})
		require.ErrorIs(t, err, ErrUnauthorized)
		require.ErrorContains(t, err, `keeper.withdraw`)
	})

	t.Run("denied method", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			_, err := tx.Call(keeper, "locked", nil)
			return err
		})
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("proof in the root auth zone", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			bb, err := keeperWithdraw(tx, badgeHolder, decimal.NewFromInt(1))
			if err != nil {
				return err
			}
			if err := tx.PresentBucket(bb); err != nil {
				return err
			}
			b, err := keeperWithdraw(tx, keeper, decimal.NewFromInt(5))
			if err != nil {
				return err
			}
			if err := keeperDeposit(tx, keeper, b); err != nil {
				return err
			}
			return keeperDeposit(tx, badgeHolder, bb)
		})
		require.NoError(t, err)
	})

	t.Run("proof is not visible in the callee frame", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			bb, err := keeperWithdraw(tx, badgeHolder, decimal.NewFromInt(1))
			if err != nil {
				return err
			}
			if err := tx.PresentBucket(bb); err != nil {
				return err
			}
			if err := keeperDeposit(tx, badgeHolder, bb); err != nil {
				return err
			}
			// keeper's owner method called from within the badge holder's frame
			_, err = Call[*Bucket](tx, badgeHolder, "relay", relayArgs{Target: keeper, Amount: decimal.NewFromInt(5)})
			return err
		})
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("scoped proof", func(t *testing.T) {
		// proof is dropped when the call fails, the failed call still aborts the transaction
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			_, err := Call[*Bucket](tx, badgeHolder, "relay", relayArgs{Target: keeper, Amount: decimal.NewFromInt(1000), Badge: true})
			return err
		})
		require.ErrorIs(t, err, ErrInsufficientBalance)
		require.NotErrorIs(t, err, errProofLeaked)

		_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			b, err := Call[*Bucket](tx, badgeHolder, "relay", relayArgs{Target: keeper, Amount: decimal.NewFromInt(5), Badge: true})
			if err != nil {
				return err
			}
			require.Equal(t, "5", b.Amount().String())
			return keeperDeposit(tx, keeper, b)
		})
		require.NoError(t, err)

		// proof of more than the vault holds
		_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			_, err := Call[*Proof](tx, badgeHolder, "prove", decimal.NewFromInt(2))
			return err
		})
		require.ErrorIs(t, err, ErrInsufficientBalance)
	})
}

func Test_Call_signed(t *testing.T) {
	l, _ := newTestLedger(t)
	alice := sig.NewSigner(t)
	bob := sig.NewSigner(t)
	_, keeper := setupKeeper(t, l, alice.OwnerRule())

	withdraw := func(tx *Tx) error {
		b, err := keeperWithdraw(tx, keeper, decimal.NewFromInt(1))
		if err != nil {
			return err
		}
		return keeperDeposit(tx, keeper, b)
	}

	txo := NewTransaction()
	_, err := l.Execute(context.Background(), txo, withdraw)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, txo.Sign(bob.Key))
	_, err = l.Execute(context.Background(), txo, withdraw)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, txo.Sign(alice.Key))
	_, err = l.Execute(context.Background(), txo, withdraw)
	require.NoError(t, err)

	// signatures do not authorize calls made by components
	txo = NewTransaction()
	require.NoError(t, txo.Sign(alice.Key))
	_, err = l.Execute(context.Background(), txo, func(tx *Tx) error {
		b, err := Call[*Bucket](tx, keeper, "relay", relayArgs{Target: keeper, Amount: decimal.NewFromInt(1)})
		if err != nil {
			return err
		}
		return keeperDeposit(tx, keeper, b)
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	txo = NewTransaction()
	txo.Signatures = [][]byte{{1, 2, 3}}
	_, err = l.Execute(context.Background(), txo, withdraw)
	require.ErrorContains(t, err, `invalid transaction signature: recovering signer 0`)
}

func Test_Vault_ownership(t *testing.T) {
	l, _ := newTestLedger(t)
	_, keeperA := setupKeeper(t, l, templates.AlwaysTrueBytes())
	_, keeperB := setupKeeper(t, l, templates.AlwaysTrueBytes())

	_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		vaultA, err := Call[types.VaultID](tx, keeperA, "vault_id", nil)
		if err != nil {
			return err
		}
		_, err = Call[decimal.Decimal](tx, keeperB, "open", vaultA)
		return err
	})
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		_, err := tx.top().NewVault(nil)
		return err
	})
	require.EqualError(t, err, `vault can be created only by a component`)
}

func Test_Call_argument(t *testing.T) {
	l, store := newTestLedger(t)
	_, keeper := setupKeeper(t, l, templates.AlwaysFalseBytes())
	root, err := store.Root()
	require.NoError(t, err)

	// the caller chooses the method and it's argument, never the code executed
	executed := false
	body := func(f *Frame) error {
		executed = true
		v, err := keeperVault(f)
		if err != nil {
			return err
		}
		_, err = v.TakeAll()
		return err
	}
	for _, method := range []string{"deposit", "balance", "mint", "vault_id"} {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			_, err := tx.Call(keeper, method, body)
			return err
		})
		require.ErrorIs(t, err, ErrInvalidArgument, method)
	}
	require.False(t, executed)

	_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		_, err := tx.Instantiate(keeperBlueprint.Name, nil, templates.AlwaysTrueBytes(), body)
		return err
	})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorContains(t, err, `keeper.instantiate`)

	// result of unexpected type fails the transaction
	_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		_, _ = Call[string](tx, keeper, "balance", nil)
		return nil
	})
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.ErrorContains(t, err, `result is decimal.Decimal, expected string`)

	r, err := store.Root()
	require.NoError(t, err)
	require.Equal(t, root, r)
	require.True(t, decimal.NewFromInt(100).Equal(keeperBalance(t, l, keeper)))
}

func Test_Frame_handles(t *testing.T) {
	l, store := newTestLedger(t)
	token, keeper := setupKeeper(t, l, templates.AlwaysFalseBytes())
	_, other := setupKeeper(t, l, templates.AlwaysTrueBytes())
	root, err := store.Root()
	require.NoError(t, err)

	var leaked *leakedHandles
	t.Run("used after the method returned", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) (err error) {
			if leaked, err = Call[*leakedHandles](tx, keeper, "leak", nil); err != nil {
				return err
			}
			_, err = leaked.Vault.TakeAll()
			require.ErrorIs(t, err, ErrFrameInactive)
			_, err = leaked.Vault.Amount()
			require.ErrorIs(t, err, ErrFrameInactive)
			_, err = leaked.Vault.CreateProofOfAmount(decimal.NewFromInt(1))
			require.ErrorIs(t, err, ErrFrameInactive)
			b, err := tx.NewResourceWithSupply(testToken(), decimal.NewFromInt(1))
			require.NoError(t, err)
			require.ErrorIs(t, leaked.Vault.Put(b), ErrFrameInactive)

			_, err = leaked.Frame.Vault(leaked.Vault.ID())
			require.ErrorIs(t, err, ErrFrameInactive)
			_, err = leaked.Frame.NewVault(token)
			require.ErrorIs(t, err, ErrFrameInactive)
			require.ErrorIs(t, leaked.Frame.SaveState(&keeperState{}), ErrFrameInactive)
			require.ErrorIs(t, leaked.Frame.LoadState(&keeperState{}), ErrFrameInactive)
			err = leaked.Frame.AuthorizeWithAmount(leaked.Vault, decimal.NewFromInt(1), func() error { return nil })
			require.ErrorIs(t, err, ErrFrameInactive)
			return errors.New("rollback")
		})
		require.EqualError(t, err, `rollback`)
	})

	t.Run("used in later transaction", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			_, err := leaked.Vault.TakeAll()
			return err
		})
		require.ErrorIs(t, err, ErrTxDone)
	})

	t.Run("passed to another component", func(t *testing.T) {
		// the lender's frame waits for the call to return
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			b, err := Call[*Bucket](tx, keeper, "lend", other)
			if err != nil {
				return err
			}
			return keeperDeposit(tx, other, b)
		})
		require.ErrorIs(t, err, ErrFrameInactive)
	})

	r, err := store.Root()
	require.NoError(t, err)
	require.Equal(t, root, r)
	require.True(t, decimal.NewFromInt(100).Equal(keeperBalance(t, l, keeper)))
}

func Test_Proof_binding(t *testing.T) {
	l, _ := newTestLedger(t)

	var badge types.ResourceAddress
	var holder, keeper types.ComponentAddress
	_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		b, err := tx.NewResourceWithSupply(resources.NewBadge("owner badge"), decimal.NewFromInt(1))
		if err != nil {
			return err
		}
		badge = b.Resource()
		if holder, err = newKeeper(tx, nil, templates.AlwaysTrueBytes(), badge); err != nil {
			return err
		}
		if err := keeperDeposit(tx, holder, b); err != nil {
			return err
		}
		tokens, err := tx.NewResourceWithSupply(testToken(), decimal.NewFromInt(50))
		if err != nil {
			return err
		}
		if keeper, err = newKeeper(tx, nil, templates.NewRequireResourceBytes(badge), tokens.Resource()); err != nil {
			return err
		}
		return keeperDeposit(tx, keeper, tokens)
	})
	require.NoError(t, err)

	var stale *Proof
	var staleBucket *Bucket
	_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) (err error) {
		if stale, err = Call[*Proof](tx, holder, "prove", decimal.NewFromInt(1)); err != nil {
			return err
		}
		// proof of the bucket outlives the bucket
		if staleBucket, err = keeperWithdraw(tx, holder, decimal.NewFromInt(1)); err != nil {
			return err
		}
		return keeperDeposit(tx, holder, staleBucket)
	})
	require.NoError(t, err)

	withdraw := func(tx *Tx) error {
		b, err := keeperWithdraw(tx, keeper, decimal.NewFromInt(5))
		if err != nil {
			return err
		}
		return keeperDeposit(tx, keeper, b)
	}

	t.Run("proof created by another transaction is rejected", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			return tx.PushProof(stale)
		})
		require.ErrorIs(t, err, ErrInvalidProof)

		_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			_ = tx.PushProof(stale)
			return withdraw(tx)
		})
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("proof in the auth zone is ignored outside of it's transaction", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			tx.top().proofs = append(tx.top().proofs, stale)
			return withdraw(tx)
		})
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("bucket of finished transaction", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			return tx.PresentBucket(staleBucket)
		})
		require.ErrorIs(t, err, ErrTxDone)
	})

	t.Run("fresh proof", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			p, err := Call[*Proof](tx, holder, "prove", decimal.NewFromInt(1))
			if err != nil {
				return err
			}
			require.True(t, p.Resource().Eq(badge))
			if err := tx.PushProof(p); err != nil {
				return err
			}
			return withdraw(tx)
		})
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(50).Equal(keeperBalance(t, l, keeper)))
	})
}

func Test_Bucket(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		a, err := tx.NewResourceWithSupply(testToken(), decimal.NewFromInt(10))
		require.NoError(t, err)
		b, err := tx.NewResourceWithSupply(testToken(), decimal.NewFromInt(10))
		require.NoError(t, err)

		_, err = a.Take(decimal.RequireFromString("0.001"))
		require.ErrorIs(t, err, ErrInvalidAmount)
		_, err = a.Take(decimal.NewFromInt(-1))
		require.ErrorIs(t, err, ErrInvalidAmount)
		_, err = a.Take(decimal.NewFromInt(11))
		require.ErrorIs(t, err, ErrInsufficientBalance)

		require.ErrorIs(t, a.Put(b), ErrTypeMismatch)
		require.Equal(t, "10", b.Amount().String(), "failed put doesn't move anything")

		c, err := a.Take(decimal.RequireFromString("2.5"))
		require.NoError(t, err)
		require.Equal(t, "7.5", a.Amount().String())
		require.NoError(t, a.Put(c))
		require.True(t, c.IsEmpty())
		require.Equal(t, "10", a.Amount().String())

		all, err := a.TakeAll()
		require.NoError(t, err)
		require.True(t, a.IsEmpty())
		_, err = a.CreateProof()
		require.ErrorIs(t, err, ErrInsufficientBalance)

		// the resources can't be burned, have to be left somewhere
		require.ErrorIs(t, tx.Burn(all), ErrUnauthorized)
		return nil
	})
	require.ErrorIs(t, err, ErrDanglingBucket)
}

func Test_ResourceRoles(t *testing.T) {
	l, _ := newTestLedger(t)
	var token types.ResourceAddress
	var badge types.ResourceAddress
	var keeper, holder types.ComponentAddress
	_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		res, err := tx.AllocateComponentAddress()
		if err != nil {
			return err
		}
		bb, err := tx.NewResourceWithSupply(resources.NewBadge("admin"), decimal.NewFromInt(1))
		if err != nil {
			return err
		}
		badge = bb.Resource()
		admin := templates.NewRequireResourceBytes(badge)

		spec := testToken()
		spec.Roles.Mint = resources.RoleRule{Rule: templates.NewGlobalCallerBytes(res.Address()), Updater: admin}
		spec.Roles.Burn = resources.RoleRule{Rule: admin, Updater: admin}
		spec.Roles.Recall = resources.RoleRule{Rule: admin, Updater: admin}
		if token, err = tx.NewResource(spec); err != nil {
			return err
		}
		if keeper, err = newKeeper(tx, res, templates.AlwaysTrueBytes(), token); err != nil {
			return err
		}
		// keeper holds 0 tokens, the badge is deposited into second keeper
		if holder, err = newKeeper(tx, nil, templates.AlwaysTrueBytes(), badge); err != nil {
			return err
		}
		return keeperDeposit(tx, holder, bb)
	})
	require.NoError(t, err)

	mintInKeeper := func(tx *Tx, amount decimal.Decimal) error {
		_, err := tx.Call(keeper, "mint", amount)
		return err
	}

	t.Run("mint", func(t *testing.T) {
		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			_, err := tx.Mint(token, decimal.NewFromInt(1))
			return err
		})
		require.ErrorIs(t, err, ErrUnauthorized, "only the keeper may mint")

		_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			return mintInKeeper(tx, decimal.NewFromInt(20))
		})
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(20).Equal(keeperBalance(t, l, keeper)))
	})

	t.Run("recall, burn and role update", func(t *testing.T) {
		var vault types.VaultID
		require.NoError(t, l.Preview(context.Background(), nil, func(tx *Tx) (err error) {
			vault, err = Call[types.VaultID](tx, keeper, "vault_id", nil)
			return err
		}))

		_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			_, err := tx.Recall(vault, decimal.NewFromInt(5))
			return err
		})
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			return tx.UpdateRole(token, resources.RoleMint, templates.AlwaysTrueBytes())
		})
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			bb, err := tx.NewResourceWithSupply(resources.NewBadge("fake admin"), decimal.NewFromInt(1))
			if err != nil {
				return err
			}
			if err := tx.PresentBucket(bb); err != nil {
				return err
			}
			_, err = tx.Recall(vault, decimal.NewFromInt(5))
			return err
		})
		require.ErrorIs(t, err, ErrUnauthorized, "badge of another resource")

		// admin badge satisfies recall, burn and updater rules
		_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			bb, err := keeperWithdraw(tx, holder, decimal.NewFromInt(1))
			if err != nil {
				return err
			}
			if err := tx.PresentBucket(bb); err != nil {
				return err
			}
			b, err := tx.Recall(vault, decimal.NewFromInt(5))
			if err != nil {
				return err
			}
			if err := tx.Burn(b); err != nil {
				return err
			}
			if err := tx.UpdateRole(token, resources.RoleMint, templates.AlwaysTrueBytes()); err != nil {
				return err
			}
			return keeperDeposit(tx, holder, bb)
		})
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(15).Equal(keeperBalance(t, l, keeper)))

		_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
			b, err := tx.Mint(token, decimal.NewFromInt(1))
			if err != nil {
				return err
			}
			info, err := tx.ResourceInfo(token)
			if err != nil {
				return err
			}
			require.Equal(t, "16", info.TotalSupply.String())
			return keeperDeposit(tx, keeper, b)
		})
		require.NoError(t, err, "anybody may mint after the role update")
	})
}

func Test_Reservation(t *testing.T) {
	l, store := newTestLedger(t)
	token, _ := setupKeeper(t, l, templates.AlwaysTrueBytes())

	_, err := l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		_, err := tx.AllocateComponentAddress()
		return err
	})
	require.ErrorContains(t, err, `was not used`)

	_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		res, err := tx.AllocateComponentAddress()
		if err != nil {
			return err
		}
		if _, err := newKeeper(tx, res, templates.AlwaysTrueBytes(), token); err != nil {
			return err
		}
		_, err = newKeeper(tx, res, templates.AlwaysTrueBytes(), token)
		return err
	})
	require.ErrorContains(t, err, `is already used`)

	_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		_, err := tx.Instantiate("unknown", nil, templates.AlwaysTrueBytes(), nil)
		return err
	})
	require.ErrorIs(t, err, ErrUnknownBlueprint)
	require.Equal(t, 3, store.Len())

	var foreign *Reservation
	_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) (err error) {
		if foreign, err = tx.AllocateComponentAddress(); err != nil {
			return err
		}
		return errors.New("rollback")
	})
	require.EqualError(t, err, `rollback`)
	_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		_, err := newKeeper(tx, foreign, templates.AlwaysTrueBytes(), token)
		return err
	})
	require.ErrorContains(t, err, `was reserved by another transaction`)
	require.Equal(t, 3, store.Len())

	var addr types.ComponentAddress
	_, err = l.Execute(context.Background(), NewTransaction(), func(tx *Tx) error {
		res, err := tx.AllocateComponentAddress()
		if err != nil {
			return err
		}
		addr, err = newKeeper(tx, res, templates.AlwaysTrueBytes(), token)
		if err != nil {
			return err
		}
		require.Equal(t, res.Address(), addr)
		info, err := tx.ComponentInfo(addr)
		if err != nil {
			return err
		}
		require.Equal(t, "keeper", info.Blueprint)
		return nil
	})
	require.NoError(t, err)
}

func Test_DeriveUnitID(t *testing.T) {
	txo := NewTransaction()
	a := DeriveUnitID(txo.ID, 0, types.ResourceUnitType)
	require.Equal(t, a, DeriveUnitID(txo.ID, 0, types.ResourceUnitType))
	require.True(t, a.HasType(types.ResourceUnitType))
	require.NotEqual(t, a, DeriveUnitID(txo.ID, 1, types.ResourceUnitType))
	require.NotEqual(t, a, DeriveUnitID(NewTransaction().ID, 0, types.ResourceUnitType))
}
