package state

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seedwright/seedwright/internal/config"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "~/.seedwright/state.yaml"

// Step represents a pipeline stage.
type Step string

const (
	StepIntrospect Step = "introspect"
	StepDiscover   Step = "discover"
	StepPlan       Step = "plan"
	StepSeed       Step = "seed"
)

// AllSteps lists the pipeline stages in order.
func AllSteps() []Step {
	return []Step{StepIntrospect, StepDiscover, StepPlan, StepSeed}
}

// State holds the pipeline progress and the paths of artifacts written by
// each stage, so later commands can pick up where earlier ones left off.
type State struct {
	LastUpdated time.Time          `yaml:"last_updated"`
	Steps       map[Step]StepState `yaml:"steps,omitempty"`

	SchemaPath       string   `yaml:"schema_path,omitempty"`
	ConstraintsPath  string   `yaml:"constraints_path,omitempty"`
	WorkflowPath     string   `yaml:"workflow_path,omitempty"`
	SelectedTables   []string `yaml:"selected_tables,omitempty"`
	LastRunStatus    string   `yaml:"last_run_status,omitempty"`
	ReportPath       string   `yaml:"report_path,omitempty"`
	UndoManifestPath string   `yaml:"undo_manifest_path,omitempty"`
}

// StepState tracks one pipeline stage.
type StepState struct {
	Status      string    `yaml:"status"` // pending, complete
	CompletedAt time.Time `yaml:"completed_at,omitempty"`
}

// Load reads the pipeline state from disk. A missing file yields a fresh
// state, not an error.
func Load(path string) (*State, error) {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading state: %w", err)
	}

	s := &State{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	if s.Steps == nil {
		s.Steps = make(map[Step]StepState)
	}

	return s, nil
}

// Save writes the pipeline state to disk.
func (s *State) Save(path string) error {
	if path == "" {
		path = config.ExpandHome(DefaultPath)
	}

	s.LastUpdated = time.Now()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// New creates a fresh pipeline state.
func New() *State {
	return &State{
		LastUpdated: time.Now(),
		Steps:       make(map[Step]StepState),
	}
}

// CompleteStep marks a stage as complete.
func (s *State) CompleteStep(step Step) {
	if s.Steps == nil {
		s.Steps = make(map[Step]StepState)
	}
	s.Steps[step] = StepState{
		Status:      "complete",
		CompletedAt: time.Now(),
	}
}

// IsStepComplete returns true if the given stage has been completed.
func (s *State) IsStepComplete(step Step) bool {
	ss, ok := s.Steps[step]
	return ok && ss.Status == "complete"
}
