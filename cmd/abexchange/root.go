package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix = "EXCHANGE"

	flagState    = "state"
	flagKey      = "key"
	flagLogLevel = "log-level"

	flagAccount   = "account"
	flagComponent = "component"
	flagPrice     = "price"
	flagPayment   = "payment"
)

/*
config holds the settings shared by all the commands. Values are resolved by
viper: command line flag, then EXCHANGE_* environment variable (ie
EXCHANGE_STATE, EXCHANGE_KEY, EXCHANGE_LOG_LEVEL), then flag default.
*/
type config struct {
	v   *viper.Viper
	log zerolog.Logger
}

func (c *config) stateFile() string { return c.v.GetString(flagState) }

func (c *config) keyFile() string { return c.v.GetString(flagKey) }

func (c *config) initLogger(w io.Writer) error {
	lvl, err := zerolog.ParseLevel(c.v.GetString(flagLogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	c.log = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
	return nil
}

func newRootCmd() *cobra.Command {
	cfg := &config{v: viper.New(), log: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:          "abexchange",
		Short:        "Exchange ledger: gumball machines selling their product for XRD",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.initLogger(cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagState, "exchange.state", "path of the ledger state file")
	flags.String(flagKey, "", "path of the secp256k1 key file of the account owner")
	flags.String(flagLogLevel, zerolog.WarnLevel.String(), "log level (trace, debug, info, warn, error)")
	cobra.CheckErr(cfg.v.BindPFlags(flags))

	cfg.v.SetEnvPrefix(envPrefix)
	cfg.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.v.AutomaticEnv()

	cmd.AddCommand(
		newGenesisCmd(cfg),
		newAccountCmd(cfg),
		newFaucetCmd(cfg),
		newGumballCmd(cfg),
	)
	return cmd
}
