package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alphabill-org/alphabill-exchange/blueprints/faucet"
	"github.com/alphabill-org/alphabill-exchange/engine"
)

func newFaucetCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faucet",
		Short: fmt.Sprintf("Deposit %s free XRD into the account", faucet.FreeAmount),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			if _, err := cfg.execute(cmd.Context(), false, func(tx *engine.Tx) error {
				b, err := faucet.Free(tx)
				if err != nil {
					return err
				}
				return acc.Deposit(tx, b)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deposited: %s XRD\n", faucet.FreeAmount)
			return nil
		},
	}
	cmd.Flags().String(flagAccount, "", "address of the account receiving XRD")
	_ = cmd.MarkFlagRequired(flagAccount)
	return cmd
}
