package validator

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Checks are the per-build validation flags. Only ExpoInstallCheck is
// driven by an external command; the rest are structural.
type Checks struct {
	PackageJSONExists        bool `json:"packageJsonExists"`
	AppJSONExists            bool `json:"appJsonExists"`
	HasValidBundleIdentifier bool `json:"hasValidBundleIdentifier"`
	HasValidAndroidPackage   bool `json:"hasValidAndroidPackage"`
	HasMandatoryFiles        bool `json:"hasMandatoryFiles"`
	ExpoInstallCheck         bool `json:"expoInstallCheck"`
}

// ExpoInfo captures what the Expo CLI reported about the build.
type ExpoInfo struct {
	Version    string         `json:"version"`
	SDKVersion string         `json:"sdkVersion"`
	Config     map[string]any `json:"config"`
}

// DependencyInfo summarizes framework-managed dependencies found in
// package.json and any advisory issues with how they are pinned.
type DependencyInfo struct {
	Strategy    string   `json:"strategy"`
	ExpoModules []string `json:"expoModules"`
	Issues      []string `json:"issues"`
}

// Report is the point-in-time validation result for one build directory.
// It is written to a sibling meta/ directory, never into the registry, and
// overwritten on each run.
type Report struct {
	ValidatedAt    string                   `json:"validatedAt"`
	RunID          string                   `json:"runId"`
	BuildPath      string                   `json:"buildPath"`
	NodeVersion    string                   `json:"nodeVersion"`
	NpmVersion     string                   `json:"npmVersion"`
	PackageManager string                   `json:"packageManager"`
	Validation     Checks                   `json:"validation"`
	Expo           ExpoInfo                 `json:"expo"`
	Dependencies   DependencyInfo           `json:"dependencies"`
	Commands       map[string]CommandResult `json:"commands"`
	Errors         []string                 `json:"errors"`
	Warnings       []string                 `json:"warnings"`
}

func newReport(buildPath string) *Report {
	return &Report{
		ValidatedAt:    time.Now().UTC().Format(time.RFC3339),
		RunID:          uuid.NewString(),
		BuildPath:      buildPath,
		PackageManager: "npm",
		Dependencies: DependencyInfo{
			Strategy:    "expo-install-compatibility",
			ExpoModules: []string{},
			Issues:      []string{},
		},
		Commands: map[string]CommandResult{},
		Errors:   []string{},
		Warnings: []string{},
	}
}

// Passed reports whether the build cleared validation: no blocking errors,
// a package.json, and a valid iOS bundle identifier.
func (r *Report) Passed() bool {
	return len(r.Errors) == 0 &&
		r.Validation.PackageJSONExists &&
		r.Validation.HasValidBundleIdentifier
}

// marshalSorted serializes v with sorted keys and 2-space indentation, the
// same discipline the registry uses on disk.
func marshalSorted(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return json.MarshalIndent(tree, "", "  ")
}
