package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// LoadState reports how a registry document was obtained. Load never hard
// fails; callers inspect the state to decide whether a degraded default is
// acceptable.
type LoadState int

const (
	// LoadOK means the on-disk document was read and parsed.
	LoadOK LoadState = iota

	// LoadCreated means no registry existed and an empty one was written.
	LoadCreated

	// LoadDegraded means the on-disk document was missing or malformed and
	// an empty in-memory registry was returned. The file is left untouched.
	LoadDegraded
)

// Manager owns the registry file. All file operations are best-effort:
// I/O and parse errors degrade to defaults rather than propagating.
type Manager struct {
	path   string
	lock   bool
	logger *zap.Logger
}

// NewManager creates a manager for the registry document at path.
// A nil logger is replaced with a no-op logger.
func NewManager(path string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{path: path, logger: logger}
}

// SetLocking enables or disables the file lock around Register. With the
// lock disabled, concurrent registrations race with last-write-wins.
func (m *Manager) SetLocking(enabled bool) {
	m.lock = enabled
}

// Path returns the registry file location.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the registry document. A missing file is created empty; a
// malformed or unreadable file yields an empty in-memory registry and
// LoadDegraded without modifying the file on disk.
func (m *Manager) Load() (*Registry, LoadState) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			reg := emptyRegistry()
			if err := m.write(reg); err != nil {
				m.logger.Warn("could not create build registry", zap.String("path", m.path), zap.Error(err))
				return reg, LoadDegraded
			}
			return reg, LoadCreated
		}
		m.logger.Warn("could not load build registry", zap.String("path", m.path), zap.Error(err))
		return emptyRegistry(), LoadDegraded
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		m.logger.Warn("could not parse build registry", zap.String("path", m.path), zap.Error(err))
		return emptyRegistry(), LoadDegraded
	}
	return &reg, LoadOK
}

// Save stamps updatedAt and writes the full document with sorted keys and
// 2-space indentation.
func (m *Manager) Save(reg *Registry) error {
	reg.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := m.write(reg); err != nil {
		m.logger.Error("could not save build registry", zap.String("path", m.path), zap.Error(err))
		return err
	}
	return nil
}

func (m *Manager) write(reg *Registry) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	data, err := marshalSorted(reg)
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	return nil
}

// RegisterInput holds the caller-supplied fields for one registration.
// Framework and LaunchCommand default to the Expo toolchain when empty.
type RegisterInput struct {
	Name            string
	Slug            string
	Mode            string // ModePipeline or ModeDream
	BuildPath       string
	Status          string // StatusSuccess or StatusFailed
	RunID           string
	IdeaSlug        string
	DreamPromptHash string
	Framework       string
	LaunchCommand   string
	Notes           string
}

// Register upserts a build record. The id is derived from the build path
// plus the dream prompt hash (preferred) or run id, so re-registering the
// same build overwrites the existing record in place.
func (m *Manager) Register(in RegisterInput) error {
	if m.lock {
		// The lock file lives next to the registry, which may not exist yet
		// on a fresh checkout.
		if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
			return fmt.Errorf("failed to create registry directory: %w", err)
		}
		fl := flock.New(m.path + ".lock")
		if err := fl.Lock(); err != nil {
			return fmt.Errorf("failed to lock build registry: %w", err)
		}
		defer func() { _ = fl.Unlock() }()
	}
	return m.register(in)
}

func (m *Manager) register(in RegisterInput) error {
	reg, _ := m.Load()

	extra := in.DreamPromptHash
	if extra == "" {
		extra = in.RunID
	}
	buildID := GenerateBuildID(in.BuildPath, extra)

	entry := m.newEntry(buildID, in)

	existing := -1
	for i, b := range reg.Builds {
		if b.BuildID == buildID {
			existing = i
			break
		}
	}

	if existing >= 0 {
		reg.Builds[existing] = entry
		m.logger.Info("updated existing build", zap.String("buildId", buildID))
	} else {
		reg.Builds = append(reg.Builds, entry)
		m.logger.Info("registered new build", zap.String("buildId", buildID))
	}

	if err := m.Save(reg); err != nil {
		return err
	}
	m.logger.Info("build registry updated", zap.Int("totalBuilds", len(reg.Builds)))
	return nil
}

func (m *Manager) newEntry(buildID string, in RegisterInput) Build {
	framework := in.Framework
	if framework == "" {
		framework = "expo"
	}
	launchCommand := in.LaunchCommand
	if launchCommand == "" {
		launchCommand = "npx expo start"
	}

	return Build{
		BuildID: buildID,
		Name:    in.Name,
		Slug:    in.Slug,
		Origin: Origin{
			Mode:            in.Mode,
			RunID:           in.RunID,
			IdeaSlug:        in.IdeaSlug,
			DreamPromptHash: in.DreamPromptHash,
		},
		Framework: framework,
		BuildPath: in.BuildPath,
		Status:    in.Status,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Launch: Launch{
			Type:        "expo",
			Recommended: launchCommand,
			Notes:       in.Notes,
		},
		Preview: Preview{
			Enabled: in.Status == StatusSuccess,
			Instructions: []string{
				"cd " + in.BuildPath,
				"npm install",
				"npx expo install --check",
				launchCommand,
			},
		},
	}
}

// RegisterPipelineBuild registers a build produced by a pipeline run.
func (m *Manager) RegisterPipelineBuild(name, slug, buildPath, status, runID, ideaSlug, notes string) error {
	return m.Register(RegisterInput{
		Name:      name,
		Slug:      slug,
		Mode:      ModePipeline,
		BuildPath: buildPath,
		Status:    status,
		RunID:     runID,
		IdeaSlug:  ideaSlug,
		Notes:     notes,
	})
}

// RegisterDreamBuild registers a build produced by a dream-mode run.
func (m *Manager) RegisterDreamBuild(name, slug, buildPath, status, runID, dreamPromptHash, notes string) error {
	return m.Register(RegisterInput{
		Name:            name,
		Slug:            slug,
		Mode:            ModeDream,
		BuildPath:       buildPath,
		Status:          status,
		RunID:           runID,
		DreamPromptHash: dreamPromptHash,
		Notes:           notes,
	})
}

// Builds returns all registered builds.
func (m *Manager) Builds() []Build {
	reg, _ := m.Load()
	return reg.Builds
}

// BuildByID returns the build with the given id, if present.
func (m *Manager) BuildByID(id string) (*Build, bool) {
	for _, b := range m.Builds() {
		if b.BuildID == id {
			return &b, true
		}
	}
	return nil, false
}

func emptyRegistry() *Registry {
	return &Registry{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Builds:    []Build{},
	}
}
