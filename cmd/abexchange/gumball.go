package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/alphabill-org/alphabill-exchange/blueprints/account"
	"github.com/alphabill-org/alphabill-exchange/blueprints/exchange"
	"github.com/alphabill-org/alphabill-exchange/blueprints/faucet"
	"github.com/alphabill-org/alphabill-exchange/engine"
	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
)

func newGumballCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gumball",
		Short: "Gumball machine selling gumballs for XRD",
	}
	cmd.AddCommand(
		newGumballInstantiateCmd(cfg),
		newGumballBuyCmd(cfg),
		newGumballStatusCmd(cfg),
		newGumballSetPriceCmd(cfg),
		newGumballWithdrawCmd(cfg),
		newGumballRefillCmd(cfg),
	)
	return cmd
}

// requireFlags adds string flags and marks them required.
func requireFlags(cmd *cobra.Command, flags map[string]string) {
	for name, usage := range flags {
		cmd.Flags().String(name, "", usage)
		_ = cmd.MarkFlagRequired(name)
	}
}

func newGumballInstantiateCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instantiate",
		Short: "Create new gumball machine, the owner badge is deposited into the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			price, err := amountFlag(cmd, flagPrice)
			if err != nil {
				return err
			}

			var machine *exchange.Machine
			var status *exchange.Status
			var badge *engine.Bucket
			if _, err := cfg.execute(cmd.Context(), false, func(tx *engine.Tx) (err error) {
				if machine, badge, err = exchange.Instantiate(tx, exchange.GumballParams(price, faucet.XRD)); err != nil {
					return err
				}
				if status, err = machine.GetStatus(tx); err != nil {
					return err
				}
				return acc.Deposit(tx, badge)
			}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Component: %s\n", machine.Address)
			fmt.Fprintf(out, "Product: %s\n", status.Product)
			fmt.Fprintf(out, "Badge: %s\n", badge.Resource())
			return nil
		},
	}
	requireFlags(cmd, map[string]string{
		flagAccount: "address of the account receiving the owner badge",
		flagPrice:   "price of a gumball in XRD",
	})
	return cmd
}

func newGumballBuyCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy a gumball paying with XRD from the account, the gumball and the change are deposited back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := accountFlag(cmd)
			if err != nil {
				return err
			}
			machine, err := machineFlag(cmd)
			if err != nil {
				return err
			}
			payment, err := amountFlag(cmd, flagPayment)
			if err != nil {
				return err
			}

			var change decimal.Decimal
			if _, err := cfg.execute(cmd.Context(), true, func(tx *engine.Tx) error {
				xrd, err := acc.Withdraw(tx, faucet.XRD, payment)
				if err != nil {
					return err
				}
				gumball, rest, err := machine.Buy(tx, xrd)
				if err != nil {
					return err
				}
				change = rest.Amount()
				return acc.DepositBatch(tx, gumball, rest)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Change: %s XRD\n", change)
			return nil
		},
	}
	requireFlags(cmd, map[string]string{
		flagAccount:   "address of the buyer's account",
		flagComponent: "address of the gumball machine",
		flagPayment:   "amount of XRD to pay",
	})
	return cmd
}

func newGumballStatusCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the price and the stock of the gumball machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, err := machineFlag(cmd)
			if err != nil {
				return err
			}
			var status *exchange.Status
			if err := cfg.preview(cmd.Context(), func(tx *engine.Tx) (err error) {
				status, err = machine.GetStatus(tx)
				return err
			}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Component: %s\n", machine.Address)
			fmt.Fprintf(out, "Price: %s\n", status.Price)
			fmt.Fprintf(out, "Stock: %s\n", status.Stock)
			fmt.Fprintf(out, "Capacity: %s\n", status.Capacity)
			fmt.Fprintf(out, "Product: %s\n", status.Product)
			fmt.Fprintf(out, "Settlement: %s\n", status.Settlement)
			return nil
		},
	}
	requireFlags(cmd, map[string]string{flagComponent: "address of the gumball machine"})
	return cmd
}

func newGumballSetPriceCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-price",
		Short: "Change the price of a gumball, the account must hold the owner badge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := amountFlag(cmd, flagPrice)
			if err != nil {
				return err
			}
			if err := runAsOwner(cmd, cfg, func(tx *engine.Tx, _ *account.Account, m *exchange.Machine) error {
				return m.SetPrice(tx, price)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Price: %s\n", price)
			return nil
		},
	}
	requireFlags(cmd, map[string]string{
		flagAccount:   "address of the account holding the owner badge",
		flagComponent: "address of the gumball machine",
		flagPrice:     "new price of a gumball in XRD",
	})
	return cmd
}

func newGumballWithdrawCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Move the earnings of the gumball machine into the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var earnings decimal.Decimal
			if err := runAsOwner(cmd, cfg, func(tx *engine.Tx, acc *account.Account, m *exchange.Machine) error {
				b, err := m.WithdrawEarnings(tx)
				if err != nil {
					return err
				}
				earnings = b.Amount()
				return acc.Deposit(tx, b)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Withdrawn: %s XRD\n", earnings)
			return nil
		},
	}
	requireFlags(cmd, map[string]string{
		flagAccount:   "address of the account holding the owner badge",
		flagComponent: "address of the gumball machine",
	})
	return cmd
}

func newGumballRefillCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refill",
		Short: "Mint gumballs until the stock of the machine is at capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var minted decimal.Decimal
			if err := runAsOwner(cmd, cfg, func(tx *engine.Tx, _ *account.Account, m *exchange.Machine) (err error) {
				minted, err = m.RefillToCapacity(tx)
				return err
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Minted: %s\n", minted)
			return nil
		},
	}
	requireFlags(cmd, map[string]string{
		flagAccount:   "address of the account holding the owner badge",
		flagComponent: "address of the gumball machine",
	})
	return cmd
}

func machineFlag(cmd *cobra.Command) (*exchange.Machine, error) {
	addr, err := componentFlag(cmd, flagComponent)
	if err != nil {
		return nil, err
	}
	return &exchange.Machine{Address: addr}, nil
}

/*
runAsOwner executes signed transaction which presents proof of the machine's
owner badge (held by the account) before calling fn.
*/
func runAsOwner(cmd *cobra.Command, cfg *config, fn func(tx *engine.Tx, acc *account.Account, m *exchange.Machine) error) error {
	acc, err := accountFlag(cmd)
	if err != nil {
		return err
	}
	machine, err := machineFlag(cmd)
	if err != nil {
		return err
	}
	_, err = cfg.execute(cmd.Context(), true, func(tx *engine.Tx) error {
		info, err := tx.ComponentInfo(machine.Address)
		if err != nil {
			return err
		}
		badge, err := templates.ExtractResourceFromRequireResource(info.OwnerRule)
		if err != nil {
			return fmt.Errorf("owner badge of %s: %w", machine.Address, err)
		}
		if err := acc.PresentProofOfAmount(tx, badge, decimal.NewFromInt(1)); err != nil {
			return err
		}
		return fn(tx, acc, machine)
	})
	return err
}
