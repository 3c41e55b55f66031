package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// requiredBuildFields must be present on every record in the registry.
var requiredBuildFields = []string{"buildId", "name", "slug", "origin", "buildPath", "status", "createdAt"}

// ValidateFile structurally validates the on-disk registry document and
// returns human-readable errors, empty when the registry is valid. It works
// on the raw JSON rather than the typed Registry so that missing keys are
// detected instead of silently zero-valued.
func (m *Manager) ValidateFile() []string {
	var errors []string

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Build registry not found at %s", m.path))
		} else {
			errors = append(errors, fmt.Sprintf("Could not load registry: %v", err))
		}
		return errors
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		errors = append(errors, fmt.Sprintf("Could not load registry: %v", err))
		return errors
	}

	rawBuilds, ok := doc["builds"]
	if !ok {
		errors = append(errors, "Registry missing 'builds' field")
		return errors
	}
	builds, ok := rawBuilds.([]any)
	if !ok {
		errors = append(errors, "Registry 'builds' field is not a list")
		return errors
	}

	for i, raw := range builds {
		build, ok := raw.(map[string]any)
		if !ok {
			errors = append(errors, fmt.Sprintf("Build %d: not an object", i))
			continue
		}

		for _, field := range requiredBuildFields {
			if _, ok := build[field]; !ok {
				errors = append(errors, fmt.Sprintf("Build %d: missing required field '%s'", i, field))
			}
		}

		origin, ok := build["origin"].(map[string]any)
		if !ok {
			continue
		}
		if _, ok := origin["mode"]; !ok {
			errors = append(errors, fmt.Sprintf("Build %d: origin missing required field 'mode'", i))
		}

		switch mode, _ := origin["mode"].(string); mode {
		case ModeDream:
			if s, _ := origin["dreamPromptHash"].(string); s == "" {
				errors = append(errors, fmt.Sprintf("Build %d: dream mode build missing dreamPromptHash", i))
			}
		case ModePipeline:
			if s, _ := origin["runId"].(string); s == "" {
				errors = append(errors, fmt.Sprintf("Build %d: pipeline mode build missing runId", i))
			}
		}
	}

	return errors
}
