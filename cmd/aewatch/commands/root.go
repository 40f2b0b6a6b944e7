package commands

import (
	"aewatch/internal/components/chrono"
	"aewatch/internal/components/telemetry"
	"aewatch/pkg/configutil"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var configPath *string

// set by the root command before any subcommand runs
var (
	config     Config
	timeApi    chrono.TimeAPI
	tel        telemetry.API
	closeLogFn func() error
)

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "aewatch.json5", "The configuration file, a <name>.local.json5 next to it overrides it.")
}

var rootCmd = &cobra.Command{
	Use:   "aewatch",
	Short: "aewatch keeps track of an Astro Empires account: its stats, guild board, mail and the players it comes across.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configutil.ReadConfig[Config](*configPath)
		if err != nil {
			return fmt.Errorf("read config %s: %w", *configPath, err)
		}
		config = cfg
		closeLogFn = telemetry.SetupSlog(cfg.Log)

		standard, err := chrono.NewStandardImpl(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone: %w", err)
		}
		timeApi = standard
		tel = telemetry.SlogAPI{}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if closeLogFn != nil {
			return closeLogFn()
		}
		return nil
	},
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	if closeLogFn != nil {
		closeLogFn()
	}
	os.Exit(1)
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
