package validator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"appfactory/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testValidator points the package runner at a binary that does not exist,
// so every diagnostic command fails deterministically regardless of what is
// installed on the host.
func testValidator() *Validator {
	return New(config.ValidatorConfig{
		BundlePrefix:    "com.appfactory",
		CommandTimeout:  "5s",
		MaxOutputBytes:  1 << 20,
		PackageRunner:   "appfactory-no-such-binary-xyz",
		FrameworkPrefix: "expo-",
	}, nil)
}

// writeBuild lays down a well-formed Expo build directory fixture.
func writeBuild(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "builds", "demo-app")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	pkg := map[string]any{
		"name": "demo-app",
		"dependencies": map[string]string{
			"expo":            "^50.0.0",
			"expo-status-bar": "^1.11.1",
			"expo-font":       "~11.10.2",
			"react-native":    "0.73.2",
		},
	}
	writeJSON(t, filepath.Join(dir, "package.json"), pkg)

	app := map[string]any{
		"expo": map[string]any{
			"name":    "Demo App",
			"slug":    "demo-app",
			"ios":     map[string]any{"bundleIdentifier": "com.appfactory.demo.app"},
			"android": map[string]any{"package": "com.appfactory.demo.app"},
		},
	}
	writeJSON(t, filepath.Join(dir, "app.json"), app)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "App.js"), []byte("export default function App() {}\n"), 0o644))
	return dir
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestValidateBuildMissingPath(t *testing.T) {
	v := testValidator()

	report := v.ValidateBuild(context.Background(), filepath.Join(t.TempDir(), "nope"))

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "does not exist")
	assert.Equal(t, Checks{}, report.Validation, "no validation flags may be set")
	assert.Empty(t, report.Commands)
	assert.Empty(t, report.NodeVersion)
	assert.NotEmpty(t, report.RunID)
}

func TestValidateBuildWellFormedWithFailingCommands(t *testing.T) {
	v := testValidator()
	dir := writeBuild(t)

	wdBefore, err := os.Getwd()
	require.NoError(t, err)

	report := v.ValidateBuild(context.Background(), dir)

	wdAfter, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wdBefore, wdAfter, "working directory must be restored")

	// External-tool failure alone must not produce a structural error.
	assert.Empty(t, report.Errors)

	assert.True(t, report.Validation.PackageJSONExists)
	assert.True(t, report.Validation.AppJSONExists)
	assert.True(t, report.Validation.HasValidBundleIdentifier)
	assert.True(t, report.Validation.HasValidAndroidPackage)
	assert.True(t, report.Validation.HasMandatoryFiles)
	assert.False(t, report.Validation.ExpoInstallCheck)

	require.Len(t, report.Commands, 4)
	for name, res := range report.Commands {
		assert.False(t, res.Success, "command %s should fail", name)
		assert.Equal(t, -1, res.Returncode, "command %s", name)
	}

	assert.Contains(t, report.Warnings, "Expo install check failed - dependencies may be incompatible")

	assert.Equal(t, []string{"expo-font", "expo-status-bar"}, report.Dependencies.ExpoModules)
	require.Len(t, report.Dependencies.Issues, 1)
	assert.Contains(t, report.Dependencies.Issues[0], "expo-font")
	assert.Contains(t, report.Dependencies.Issues[0], "~11.10.2")
}

func TestValidateBuildEmptyDir(t *testing.T) {
	v := testValidator()
	dir := t.TempDir()

	report := v.ValidateBuild(context.Background(), dir)

	assert.Contains(t, report.Errors, "package.json not found")
	assert.Contains(t, report.Errors, "app.json not found")
	assert.Contains(t, report.Errors, "No valid entry point found (App.js, App.tsx, or app/_layout.tsx)")
	assert.False(t, report.Validation.PackageJSONExists)
	assert.False(t, report.Passed())
}

func TestValidateBuildForeignBundlePrefix(t *testing.T) {
	v := testValidator()
	dir := writeBuild(t)

	app := map[string]any{
		"expo": map[string]any{
			"ios":     map[string]any{"bundleIdentifier": "org.example.demo"},
			"android": map[string]any{"package": "com.appfactory.demo"},
		},
	}
	writeJSON(t, filepath.Join(dir, "app.json"), app)

	report := v.ValidateBuild(context.Background(), dir)

	assert.True(t, report.Validation.HasValidBundleIdentifier)
	found := false
	for _, w := range report.Warnings {
		if w == "Bundle identifier 'org.example.demo' doesn't follow com.appfactory.* pattern" {
			found = true
		}
	}
	assert.True(t, found, "expected prefix warning, got %v", report.Warnings)
}

func TestValidateBuildMissingIdentifiers(t *testing.T) {
	v := testValidator()
	dir := writeBuild(t)
	writeJSON(t, filepath.Join(dir, "app.json"), map[string]any{"expo": map[string]any{}})

	report := v.ValidateBuild(context.Background(), dir)

	assert.Contains(t, report.Errors, "Missing ios.bundleIdentifier in app.json")
	assert.Contains(t, report.Errors, "Missing android.package in app.json")
	assert.False(t, report.Validation.HasValidBundleIdentifier)
}

func TestValidateBuildMalformedManifest(t *testing.T) {
	v := testValidator()
	dir := writeBuild(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{oops"), 0o644))

	report := v.ValidateBuild(context.Background(), dir)

	found := false
	for _, e := range report.Errors {
		if strings.Contains(e, "Could not parse package.json") {
			found = true
		}
	}
	assert.True(t, found, "expected parse error for package.json, got %v", report.Errors)
	// File exists, so the existence flag is still set.
	assert.True(t, report.Validation.PackageJSONExists)
}

func TestWriteReport(t *testing.T) {
	v := testValidator()
	dir := writeBuild(t)

	report := v.ValidateBuild(context.Background(), dir)
	require.NoError(t, v.WriteReport(dir, report))

	reportPath := ReportPath(dir)
	assert.Equal(t, filepath.Join(filepath.Dir(dir), "meta", "build_validation.json"), reportPath)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, dir, decoded["buildPath"])
	assert.Contains(t, decoded, "commands")
	assert.Contains(t, decoded, "validation")
}

func TestToolVersionMissingTool(t *testing.T) {
	v := testValidator()
	assert.Empty(t, v.ToolVersion(context.Background(), "appfactory-no-such-binary-xyz"))
}
