package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/alphabill-org/alphabill-exchange/blueprints/account"
	"github.com/alphabill-org/alphabill-exchange/blueprints/candystore"
	"github.com/alphabill-org/alphabill-exchange/blueprints/exchange"
	"github.com/alphabill-org/alphabill-exchange/blueprints/faucet"
	"github.com/alphabill-org/alphabill-exchange/blueprints/mintable"
	"github.com/alphabill-org/alphabill-exchange/engine"
	"github.com/alphabill-org/alphabill-exchange/state"
	"github.com/alphabill-org/alphabill-exchange/types"
)

func (c *config) newLedger(store state.Store) (*engine.Ledger, error) {
	return engine.New(store,
		engine.WithLogger(c.log),
		engine.WithBlueprints(
			faucet.Blueprint,
			account.Blueprint,
			exchange.Blueprint,
			candystore.Blueprint,
			mintable.Blueprint,
		),
	)
}

func (c *config) openLedger() (*engine.Ledger, *state.MemStore, error) {
	path := c.stateFile()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("state file %q doesn't exist, run genesis first", path)
		}
		return nil, nil, fmt.Errorf("opening state file: %w", err)
	}
	defer f.Close()

	store, err := state.Load(f)
	if err != nil {
		return nil, nil, fmt.Errorf("loading state from %q: %w", path, err)
	}
	l, err := c.newLedger(store)
	if err != nil {
		return nil, nil, err
	}
	return l, store, nil
}

// saveState replaces the state file with the snapshot of the store.
func (c *config) saveState(store *state.MemStore) error {
	path := c.stateFile()
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating state file: %w", err)
	}
	defer os.Remove(f.Name())

	if err := store.Save(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing state file: %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	root, err := store.Root()
	if err != nil {
		return fmt.Errorf("calculating state root: %w", err)
	}
	c.log.Debug().Str("file", path).Int("units", store.Len()).Hex("root", root).Msg("state saved")
	return nil
}

func (c *config) loadKey() (*ecdsa.PrivateKey, error) {
	path := c.keyFile()
	if path == "" {
		return nil, fmt.Errorf("key file is not set (--%s or %s_KEY)", flagKey, envPrefix)
	}
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("loading key from %q: %w", path, err)
	}
	return key, nil
}

/*
execute runs fn as a transaction on the ledger loaded from the state file
and saves the state when the transaction is committed. When "signed" is
true the transaction is signed with the configured key.
*/
func (c *config) execute(ctx context.Context, signed bool, fn func(tx *engine.Tx) error) (*engine.Receipt, error) {
	l, store, err := c.openLedger()
	if err != nil {
		return nil, err
	}
	txo := engine.NewTransaction()
	if signed {
		key, err := c.loadKey()
		if err != nil {
			return nil, err
		}
		if err := txo.Sign(key); err != nil {
			return nil, err
		}
	}

	rcpt, err := l.Execute(ctx, txo, fn)
	if err != nil {
		return nil, err
	}
	if err := c.saveState(store); err != nil {
		return nil, err
	}
	c.log.Info().Stringer("tx", rcpt.TxID).Int("units", len(rcpt.Updated)).Msg("transaction committed")
	return rcpt, nil
}

// preview runs fn on the ledger loaded from the state file without saving anything.
func (c *config) preview(ctx context.Context, fn func(tx *engine.Tx) error) error {
	l, _, err := c.openLedger()
	if err != nil {
		return err
	}
	return l.Preview(ctx, nil, fn)
}

func accountFlag(cmd *cobra.Command) (*account.Account, error) {
	addr, err := componentFlag(cmd, flagAccount)
	if err != nil {
		return nil, err
	}
	return &account.Account{Address: addr}, nil
}

func componentFlag(cmd *cobra.Command, name string) (types.ComponentAddress, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil {
		return nil, err
	}
	addr, err := types.ParseComponentAddress(s)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return addr, nil
}

func amountFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := types.ParseAmount(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return amount, nil
}
