package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/alphabill-exchange/blueprints/faucet"
	"github.com/alphabill-org/alphabill-exchange/state"
)

func newGenesisCmd(cfg *config) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Create new ledger holding the XRD resource and the faucet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenesis(cmd, cfg, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing state file")
	return cmd
}

func runGenesis(cmd *cobra.Command, cfg *config, force bool) error {
	switch _, err := os.Stat(cfg.stateFile()); {
	case err == nil && !force:
		return fmt.Errorf("state file %q already exists", cfg.stateFile())
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("checking state file: %w", err)
	}

	store := state.NewMemStore()
	l, err := cfg.newLedger(store)
	if err != nil {
		return err
	}
	if _, err := faucet.Genesis(cmd.Context(), l); err != nil {
		return fmt.Errorf("executing genesis: %w", err)
	}
	if err := cfg.saveState(store); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "XRD: %s\n", faucet.XRD)
	fmt.Fprintf(out, "Faucet: %s\n", faucet.Address)
	return nil
}
