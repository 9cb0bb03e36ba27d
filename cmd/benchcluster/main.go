package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/danielpatrickdp/benchcluster/internal/config"
	"github.com/danielpatrickdp/benchcluster/internal/ctxlog"
)

// #region main
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// #endregion main

// #region root
// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "benchcluster",
		Short:         "Cluster JU2JMH benchmarks by coverage overlap with JMH benchmarks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to benchcluster.yaml (defaults apply when empty)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "text or json (overrides config)")

	root.AddCommand(
		newConvertCmd(a),
		newOverlapCmd(a),
		newClusterCmd(a),
		newGenerateCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the configuration and layers the flags the user set on top.
// Subcommand flags are bound to fields of a.cfg, so their values are saved
// before the loaded file replaces a.cfg and set again afterwards.
func (a *app) setup(cmd *cobra.Command) error {
	set := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		set[f.Name] = f.Value.String()
	})

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	var ferr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if err := f.Value.Set(set[f.Name]); err != nil && ferr == nil {
			ferr = fmt.Errorf("--%s: %w", f.Name, err)
		}
	})
	if ferr != nil {
		return ferr
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		a.cfg.Log.Format = a.logFormat
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	cfg = a.cfg

	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(ctxlog.WithLogger(ctx, logger))
	return nil
}

// #endregion root
