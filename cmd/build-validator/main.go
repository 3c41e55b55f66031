// Command build-validator validates generated Expo build directories and
// writes JSON validation reports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"appfactory/internal/config"
	"appfactory/internal/validator"
)

var (
	verbose bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "build-validator",
	Short: "Validate App Factory builds",
	Long: `build-validator inspects a generated build directory: it checks the
manifest files (package.json, app.json), bundle identifiers, and entry
points, then runs the Expo CLI's own diagnostics. The full report is
written to a meta/ directory next to the build's parent.`,
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
	Use:   "validate <build-path>",
	Short: "Validate a build directory and write its report",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var bundleIDCmd = &cobra.Command{
	Use:   "bundle-id <slug>",
	Short: "Generate a bundle identifier from an app slug",
	Args:  cobra.ExactArgs(1),
	RunE:  runBundleID,
}

func runValidate(cmd *cobra.Command, args []string) error {
	buildPath := args[0]

	root, err := config.FindRepoRoot()
	if err != nil {
		return fmt.Errorf("failed to locate repo root: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	v := validator.New(cfg.Validator, logger)

	fmt.Printf("Validating build at: %s\n", buildPath)
	report := v.ValidateBuild(context.Background(), buildPath)

	if err := v.WriteReport(buildPath, report); err != nil {
		fmt.Printf("Error writing validation report: %v\n", err)
	} else {
		fmt.Printf("Validation report written to: %s\n", validator.ReportPath(buildPath))
	}

	printSummary(report)

	if !report.Passed() {
		fmt.Println("\n💥 Build validation failed!")
		os.Exit(1)
	}
	fmt.Println("\n🎉 Build validation passed!")
	return nil
}

func printSummary(report *validator.Report) {
	checks := report.Validation

	fmt.Println("\n📊 Validation Summary:")
	fmt.Printf("✅ Package.json exists: %v\n", checks.PackageJSONExists)
	fmt.Printf("✅ App.json exists: %v\n", checks.AppJSONExists)
	fmt.Printf("✅ Bundle identifier: %v\n", checks.HasValidBundleIdentifier)
	fmt.Printf("✅ Android package: %v\n", checks.HasValidAndroidPackage)
	fmt.Printf("✅ Entry point: %v\n", checks.HasMandatoryFiles)
	fmt.Printf("✅ Expo install check: %v\n", checks.ExpoInstallCheck)

	if len(report.Errors) > 0 {
		fmt.Printf("\n❌ Errors (%d):\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	if len(report.Warnings) > 0 {
		fmt.Printf("\n⚠️  Warnings (%d):\n", len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}

func runBundleID(cmd *cobra.Command, args []string) error {
	fmt.Println(validator.BundleIdentifier(args[0], 50))
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(bundleIDCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
