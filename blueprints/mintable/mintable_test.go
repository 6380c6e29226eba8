package mintable_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/alphabill-exchange/blueprints/mintable"
	"github.com/alphabill-org/alphabill-exchange/engine"
	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
	"github.com/alphabill-org/alphabill-exchange/testutils/ledger"
	"github.com/alphabill-org/alphabill-exchange/testutils/sig"
	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/types"
)

func Test_MintableToken(t *testing.T) {
	l, _ := ledger.New(t, mintable.Blueprint)
	owner := sig.NewSigner(t)
	acc := ledger.NewAccount(t, l, owner, 0)

	var token *mintable.Token
	var minterBadge types.ResourceAddress
	require.NoError(t, ledger.Execute(t, l, func(tx *engine.Tx) error {
		tok, badge, err := mintable.Instantiate(tx)
		if err != nil {
			return err
		}
		token, minterBadge = tok, badge.Resource()
		require.Equal(t, "1", badge.Amount().String())
		return acc.Deposit(tx, badge)
	}))

	var info *mintable.Info
	require.NoError(t, l.Preview(context.Background(), nil, func(tx *engine.Tx) (err error) {
		info, err = token.GetInfo(tx)
		return err
	}))
	require.Equal(t, "1000", info.Reserve.String())

	totalSupply := func(t *testing.T, res types.ResourceAddress) string {
		t.Helper()
		var supply decimal.Decimal
		require.NoError(t, l.Preview(context.Background(), nil, func(tx *engine.Tx) error {
			ri, err := tx.ResourceInfo(res)
			if err != nil {
				return err
			}
			supply = ri.TotalSupply
			return nil
		}))
		return supply.String()
	}
	require.Equal(t, "0", totalSupply(t, info.LazyToken))
	require.Equal(t, "1000", totalSupply(t, info.InitSupplyToken))

	t.Run("mint through the component", func(t *testing.T) {
		require.NoError(t, ledger.Execute(t, l, func(tx *engine.Tx) error {
			lazy, err := token.MintLazyTokens(tx)
			if err != nil {
				return err
			}
			require.Equal(t, "10", lazy.Amount().String())
			more, err := token.MintInitSupplyTokens(tx)
			if err != nil {
				return err
			}
			require.Equal(t, "100", more.Amount().String())
			return acc.DepositBatch(tx, lazy, more)
		}))
		require.Equal(t, "10", totalSupply(t, info.LazyToken))
		require.Equal(t, "1100", totalSupply(t, info.InitSupplyToken))
	})

	t.Run("mint outside of the component", func(t *testing.T) {
		for _, res := range []types.ResourceAddress{info.LazyToken, info.InitSupplyToken, minterBadge} {
			err := ledger.Execute(t, l, func(tx *engine.Tx) error {
				b, err := tx.Mint(res, decimal.NewFromInt(1))
				if err != nil {
					return err
				}
				return acc.Deposit(tx, b)
			})
			require.ErrorIs(t, err, engine.ErrUnauthorized)
		}

		// holding the minter badge doesn't allow minting directly either
		err := ledger.Execute(t, l, func(tx *engine.Tx) error {
			if err := acc.PresentProofOfAmount(tx, minterBadge, decimal.NewFromInt(1)); err != nil {
				return err
			}
			_, err := tx.Mint(info.LazyToken, decimal.NewFromInt(1))
			return err
		}, owner)
		require.ErrorIs(t, err, engine.ErrUnauthorized)
	})

	t.Run("tokens can't be burned", func(t *testing.T) {
		err := ledger.Execute(t, l, func(tx *engine.Tx) error {
			b, err := acc.Withdraw(tx, info.LazyToken, decimal.NewFromInt(1))
			if err != nil {
				return err
			}
			return tx.Burn(b)
		}, owner)
		require.ErrorIs(t, err, engine.ErrUnauthorized)
	})

	t.Run("minter badge holder may update the rules", func(t *testing.T) {
		err := ledger.Execute(t, l, func(tx *engine.Tx) error {
			return tx.UpdateRole(info.LazyToken, resources.RoleBurn, templates.AlwaysTrueBytes())
		})
		require.ErrorIs(t, err, engine.ErrUnauthorized)

		require.NoError(t, ledger.Execute(t, l, func(tx *engine.Tx) error {
			if err := acc.PresentProofOfAmount(tx, minterBadge, decimal.NewFromInt(1)); err != nil {
				return err
			}
			if err := tx.UpdateRole(info.LazyToken, resources.RoleBurn, templates.AlwaysTrueBytes()); err != nil {
				return err
			}
			b, err := acc.Withdraw(tx, info.LazyToken, decimal.NewFromInt(4))
			if err != nil {
				return err
			}
			return tx.Burn(b)
		}, owner))
		require.Equal(t, "6", totalSupply(t, info.LazyToken))

		var balance decimal.Decimal
		require.NoError(t, l.Preview(context.Background(), nil, func(tx *engine.Tx) (err error) {
			balance, err = acc.Balance(tx, info.LazyToken)
			return err
		}))
		require.Equal(t, "6", balance.String())
	})
}
