// Package registry manages the build index: the single JSON document
// recording every build the App Factory pipeline has produced. Records are
// keyed by a deterministic content hash, re-registration overwrites in
// place, and nothing is ever pruned.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Mode values for Origin.Mode.
const (
	ModePipeline = "pipeline"
	ModeDream    = "dream"
)

// Status values for Build.Status.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Registry is the persisted build index document.
type Registry struct {
	UpdatedAt string  `json:"updatedAt"`
	Builds    []Build `json:"builds"`
}

// Build is one registered build artifact.
type Build struct {
	BuildID   string  `json:"buildId"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	Origin    Origin  `json:"origin"`
	Framework string  `json:"framework"`
	BuildPath string  `json:"buildPath"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"createdAt"`
	Launch    Launch  `json:"launch"`
	Preview   Preview `json:"preview"`
}

// Origin records which path produced the build. Dream builds carry a
// dreamPromptHash, pipeline builds a runId.
type Origin struct {
	Mode            string `json:"mode"`
	RunID           string `json:"runId,omitempty"`
	IdeaSlug        string `json:"ideaSlug,omitempty"`
	DreamPromptHash string `json:"dreamPromptHash,omitempty"`
}

// Launch describes how to start the generated app.
type Launch struct {
	Type        string `json:"type"`
	Recommended string `json:"recommended"`
	Notes       string `json:"notes"`
}

// Preview holds instructions for previewing a successful build.
type Preview struct {
	Enabled      bool     `json:"enabled"`
	Instructions []string `json:"instructions"`
}

// GenerateBuildID derives the deterministic build id: the first 16 hex
// characters of SHA-256 over the build path plus an optional disambiguator
// (dream prompt hash or run id). This is the sole dedup mechanism.
func GenerateBuildID(buildPath, extra string) string {
	sum := sha256.Sum256([]byte(buildPath + extra))
	return hex.EncodeToString(sum[:])[:16]
}

// marshalSorted serializes v with lexicographically sorted keys and 2-space
// indentation, matching the registry's on-disk discipline. The round trip
// through interface{} forces map ordering regardless of struct field order.
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
