// Package validator inspects generated Expo build directories. It checks
// manifest files, derives bundle identifiers, and shells out to the
// framework's own CLI diagnostics, producing a JSON validation report.
// Nothing here raises: every failure lands in the report's errors or
// warnings, or in a failed CommandResult.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"appfactory/internal/config"
)

// entryPointCandidates is the ordered list of recognized app entry points.
// At least one must exist in the build directory.
var entryPointCandidates = []string{
	"App.js",
	"App.tsx",
	"app/_layout.tsx",
	"app/_layout.js",
	"app/index.tsx",
	"app/index.js",
}

// Command names used as keys in Report.Commands.
const (
	cmdExpoVersion      = "expo_version"
	cmdExpoConfig       = "expo_config"
	cmdExpoInstallCheck = "expo_install_check"
	cmdExpoDoctor       = "expo_doctor"
)

// Validator runs the full validation sequence over a build directory.
type Validator struct {
	cfg    config.ValidatorConfig
	runner *Runner
	logger *zap.Logger
}

// New creates a validator from config. A nil logger becomes a no-op logger.
func New(cfg config.ValidatorConfig, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		cfg:    cfg,
		runner: NewRunner(cfg.Timeout(), cfg.MaxOutputBytes, logger),
		logger: logger,
	}
}

// ToolVersion runs `<tool> --version` and returns the trimmed output, or
// the empty string when the tool is unavailable.
func (v *Validator) ToolVersion(ctx context.Context, tool string) string {
	res := v.runner.Run(ctx, []string{tool, "--version"}, "")
	if !res.Success {
		return ""
	}
	return res.Stdout
}

// ValidateBuild runs the full check sequence over buildPath and returns a
// report. It never returns an error; a nonexistent path yields a report
// with a single error and everything else left at defaults.
func (v *Validator) ValidateBuild(ctx context.Context, buildPath string) *Report {
	report := newReport(buildPath)

	if _, err := os.Stat(buildPath); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Build path does not exist: %s", buildPath))
		return report
	}

	report.NodeVersion = v.ToolVersion(ctx, "node")
	report.NpmVersion = v.ToolVersion(ctx, "npm")

	v.checkPackageJSON(buildPath, report)
	v.checkAppJSON(buildPath, report)
	v.checkEntryPoint(buildPath, report)
	v.runDiagnostics(ctx, buildPath, report)

	return report
}

// checkPackageJSON collects framework-managed dependencies and flags
// tilde-pinned versions, which should instead be caret ranges resolved by
// expo install.
func (v *Validator) checkPackageJSON(buildPath string, report *Report) {
	data, err := os.ReadFile(filepath.Join(buildPath, "package.json"))
	if err != nil {
		if os.IsNotExist(err) {
			report.Errors = append(report.Errors, "package.json not found")
		} else {
			report.Errors = append(report.Errors, fmt.Sprintf("Could not parse package.json: %v", err))
		}
		return
	}
	report.Validation.PackageJSONExists = true

	var pkg struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Could not parse package.json: %v", err))
		return
	}

	var modules []string
	for name := range pkg.Dependencies {
		if strings.HasPrefix(name, v.cfg.FrameworkPrefix) {
			modules = append(modules, name)
		}
	}
	sort.Strings(modules)
	if modules != nil {
		report.Dependencies.ExpoModules = modules
	}

	for _, module := range modules {
		version := pkg.Dependencies[module]
		if version != "" && !strings.HasPrefix(version, "^") && strings.Contains(version, "~") {
			report.Dependencies.Issues = append(report.Dependencies.Issues,
				fmt.Sprintf("Hardcoded version for %s: %s (should use expo install)", module, version))
		}
	}
}

// checkAppJSON extracts the iOS bundle identifier and Android package name
// and checks them against the organizational prefix.
func (v *Validator) checkAppJSON(buildPath string, report *Report) {
	data, err := os.ReadFile(filepath.Join(buildPath, "app.json"))
	if err != nil {
		if os.IsNotExist(err) {
			report.Errors = append(report.Errors, "app.json not found")
		} else {
			report.Errors = append(report.Errors, fmt.Sprintf("Could not parse app.json: %v", err))
		}
		return
	}
	report.Validation.AppJSONExists = true

	var app map[string]any
	if err := json.Unmarshal(data, &app); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Could not parse app.json: %v", err))
		return
	}

	prefix := v.cfg.BundlePrefix + "."

	if iosBundle := nestedString(app, "expo", "ios", "bundleIdentifier"); iosBundle != "" {
		report.Validation.HasValidBundleIdentifier = true
		if !strings.HasPrefix(iosBundle, prefix) {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("Bundle identifier '%s' doesn't follow %s.* pattern", iosBundle, v.cfg.BundlePrefix))
		}
	} else {
		report.Errors = append(report.Errors, "Missing ios.bundleIdentifier in app.json")
	}

	if androidPackage := nestedString(app, "expo", "android", "package"); androidPackage != "" {
		report.Validation.HasValidAndroidPackage = true
		if !strings.HasPrefix(androidPackage, prefix) {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("Android package '%s' doesn't follow %s.* pattern", androidPackage, v.cfg.BundlePrefix))
		}
	} else {
		report.Errors = append(report.Errors, "Missing android.package in app.json")
	}
}

func (v *Validator) checkEntryPoint(buildPath string, report *Report) {
	for _, candidate := range entryPointCandidates {
		if _, err := os.Stat(filepath.Join(buildPath, candidate)); err == nil {
			report.Validation.HasMandatoryFiles = true
			return
		}
	}
	report.Errors = append(report.Errors, "No valid entry point found (App.js, App.tsx, or app/_layout.tsx)")
}

// runDiagnostics changes into the build directory and runs the fixed
// sequence of framework CLI commands. The working directory is a
// process-global resource, so restoration is deferred and unconditional.
func (v *Validator) runDiagnostics(ctx context.Context, buildPath string, report *Report) {
	restore, err := chdir(buildPath)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("Error during command execution: %v", err))
		return
	}
	defer restore()

	versionResult := v.runner.Run(ctx, []string{v.cfg.PackageRunner, "expo", "--version"}, "")
	report.Commands[cmdExpoVersion] = versionResult
	if versionResult.Success {
		report.Expo.Version = versionResult.Stdout
	}

	configResult := v.runner.Run(ctx, []string{v.cfg.PackageRunner, "expo", "config", "--type", "public"}, "")
	report.Commands[cmdExpoConfig] = configResult
	if configResult.Success {
		var cfg map[string]any
		if err := json.Unmarshal([]byte(configResult.Stdout), &cfg); err != nil {
			report.Warnings = append(report.Warnings, "Could not parse expo config JSON")
		} else {
			report.Expo.Config = cfg
			report.Expo.SDKVersion = nestedString(cfg, "expo", "sdkVersion")
		}
	}

	installResult := v.runner.Run(ctx, []string{v.cfg.PackageRunner, "expo", "install", "--check"}, "")
	report.Commands[cmdExpoInstallCheck] = installResult
	report.Validation.ExpoInstallCheck = installResult.Success
	if !installResult.Success {
		report.Warnings = append(report.Warnings, "Expo install check failed - dependencies may be incompatible")
	}

	report.Commands[cmdExpoDoctor] = v.runner.Run(ctx, []string{v.cfg.PackageRunner, "expo-doctor"}, "")
}

// WriteReport serializes the report into a meta/ directory sibling to the
// build directory's parent, creating it if needed. Failures are logged and
// returned, never raised.
func (v *Validator) WriteReport(buildPath string, report *Report) error {
	metaDir := filepath.Join(filepath.Dir(filepath.Clean(buildPath)), "meta")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		v.logger.Error("could not create meta directory", zap.String("dir", metaDir), zap.Error(err))
		return fmt.Errorf("failed to create meta directory: %w", err)
	}

	data, err := marshalSorted(report)
	if err != nil {
		return fmt.Errorf("failed to marshal validation report: %w", err)
	}

	reportPath := filepath.Join(metaDir, "build_validation.json")
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		v.logger.Error("could not write validation report", zap.String("path", reportPath), zap.Error(err))
		return fmt.Errorf("failed to write validation report: %w", err)
	}

	v.logger.Info("validation report written", zap.String("path", reportPath))
	return nil
}

// ReportPath returns where WriteReport will place the report for buildPath.
func ReportPath(buildPath string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(buildPath)), "meta", "build_validation.json")
}

// chdir changes the working directory and returns a restore function. The
// caller must defer the restore so every exit path puts the process back
// where it started.
func chdir(dir string) (func(), error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := os.Chdir(dir); err != nil {
		return nil, err
	}
	return func() { _ = os.Chdir(prev) }, nil
}

// nestedString walks nested JSON objects and returns the string at the end
// of the key path, or "" when any step is missing or mistyped.
func nestedString(m map[string]any, keys ...string) string {
	current := any(m)
	for _, key := range keys {
		obj, ok := current.(map[string]any)
		if !ok {
			return ""
		}
		current = obj[key]
	}
	s, _ := current.(string)
	return s
}
