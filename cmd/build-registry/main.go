// Command build-registry manages the App Factory build index.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"appfactory/internal/config"
	"appfactory/internal/registry"
)

var (
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "build-registry",
	Short: "Manage the App Factory build registry",
	Long: `build-registry tracks builds produced by the App Factory pipeline.

The registry is a single JSON document (builds/build_index.json by default)
recording every known build. Records are keyed by a deterministic id derived
from the build path; re-registering a build overwrites its record in place.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the build registry structure",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered builds",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Explain how builds are registered",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

func newManager() (*registry.Manager, error) {
	root, err := config.FindRepoRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to locate repo root: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	mgr := registry.NewManager(filepath.Join(root, cfg.Registry.Path), logger)
	mgr.SetLocking(cfg.Registry.Lock)
	return mgr, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	errors := mgr.ValidateFile()
	if len(errors) > 0 {
		fmt.Println("Build registry validation errors:")
		for _, e := range errors {
			fmt.Printf("  - %s\n", e)
		}
		os.Exit(1)
	}

	fmt.Println("Build registry is valid")
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	mgr, err := newManager()
	if err != nil {
		return err
	}

	builds := mgr.Builds()
	fmt.Printf("Found %d builds:\n", len(builds))
	for _, b := range builds {
		fmt.Printf("  %s: %s (%s)\n", b.BuildID, b.Name, b.Status)
	}
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	fmt.Println("Registration is programmatic: the pipeline calls")
	fmt.Println("registry.RegisterPipelineBuild or registry.RegisterDreamBuild directly.")
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(registerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
