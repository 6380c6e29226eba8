package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/alphabill-org/alphabill-exchange/blueprints/account"
	"github.com/alphabill-org/alphabill-exchange/engine"
	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
	"github.com/alphabill-org/alphabill-exchange/txsystem/resources"
	"github.com/alphabill-org/alphabill-exchange/util"
)

func newAccountCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newAccountNewCmd(cfg), newAccountShowCmd(cfg))
	return cmd
}

func newAccountNewCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create account owned by the key, the key is generated when the key file doesn't exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountNew(cmd, cfg)
		},
	}
}

func runAccountNew(cmd *cobra.Command, cfg *config) error {
	key, err := cfg.loadKey()
	if errors.Is(err, fs.ErrNotExist) {
		if key, err = crypto.GenerateKey(); err != nil {
			return fmt.Errorf("generating key: %w", err)
		}
		if err := crypto.SaveECDSA(cfg.keyFile(), key); err != nil {
			return fmt.Errorf("saving key: %w", err)
		}
		cfg.log.Info().Str("file", cfg.keyFile()).Msg("generated new key")
	}
	if err != nil {
		return err
	}

	ownerRule := templates.NewP2pkh256BytesFromKey(crypto.CompressPubkey(&key.PublicKey))
	var acc *account.Account
	if _, err := cfg.execute(cmd.Context(), false, func(tx *engine.Tx) (err error) {
		acc, err = account.New(tx, ownerRule)
		return err
	}); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Account: %s\n", acc.Address)
	fmt.Fprintf(out, "Key: %s\n", cfg.keyFile())
	return nil
}

func newAccountShowCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resources held by the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountShow(cmd, cfg)
		},
	}
	cmd.Flags().String(flagAccount, "", "address of the account")
	_ = cmd.MarkFlagRequired(flagAccount)
	return cmd
}

type holding struct {
	account.Balance
	Symbol string
}

func (h holding) String() string {
	return fmt.Sprintf("%s %s %s", h.Amount, h.Symbol, h.Resource)
}

func runAccountShow(cmd *cobra.Command, cfg *config) error {
	acc, err := accountFlag(cmd)
	if err != nil {
		return err
	}

	var holdings []holding
	err = cfg.preview(cmd.Context(), func(tx *engine.Tx) error {
		balances, err := acc.Balances(tx)
		if err != nil {
			return err
		}
		for _, b := range balances {
			info, err := tx.ResourceInfo(b.Resource)
			if err != nil {
				return err
			}
			holdings = append(holdings, holding{Balance: b, Symbol: info.Metadata[resources.MetadataSymbol]})
		}
		return nil
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Account: %s\n", acc.Address)
	if len(holdings) == 0 {
		fmt.Fprintln(out, "no resources")
		return nil
	}
	fmt.Fprintln(out, strings.Join(util.TransformSlice(holdings, holding.String), "\n"))
	return nil
}
