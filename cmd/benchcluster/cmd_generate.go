package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/benchcluster/internal/codegen"
	"github.com/danielpatrickdp/benchcluster/internal/config"
	"github.com/danielpatrickdp/benchcluster/internal/ctxlog"
	"github.com/danielpatrickdp/benchcluster/internal/report"
)

// #region generate
func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render one JMH class per manifest cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			entries, err := report.ReadManifestFile(a.cfg.Outputs.Manifest)
			if err != nil {
				return err
			}
			paths, err := codegen.WriteAll(ctx, entries, codegen.Options{
				Package:       a.cfg.Codegen.Package,
				BenchmarksDir: a.cfg.Codegen.BenchmarksDir,
				OutputDir:     a.cfg.Codegen.OutputDir,
			})
			if err != nil {
				return err
			}
			ctxlog.FromContext(ctx).Info("generation finished", "classes", len(paths), "dir", a.cfg.Codegen.OutputDir)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&a.cfg.Outputs.Manifest, "manifest", "", "manifest written by the cluster command")
	f.StringVar(&a.cfg.Codegen.Package, "package", "", "Java package of the generated classes")
	f.StringVar(&a.cfg.Codegen.BenchmarksDir, "benchmarks-dir", "", "source root of the JU2JMH benchmark classes")
	f.StringVar(&a.cfg.Codegen.OutputDir, "out", "", "directory for the generated classes")
	return cmd
}

// #endregion generate

// #region config
func newConfigCmd(a *app) *cobra.Command {
	var savePath string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, or save it with --save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if savePath != "" {
				return config.Save(savePath, a.cfg)
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&savePath, "save", "", "write the effective configuration to this path")
	return cmd
}

// #endregion config
