package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bonfire/internal/present"
	"github.com/roach88/bonfire/internal/settings"
	"github.com/roach88/bonfire/internal/testutil"
)

// Scenario is a scripted run of the watcher against a changing board.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// URL is the page address. Defaults to a Jira board URL.
	URL string `yaml:"url,omitempty"`

	// Settings are persisted before the first step.
	Settings *SettingsPatch `yaml:"settings,omitempty"`

	// Board is the initial rendering.
	Board []testutil.Column `yaml:"board"`

	// Flow contains the steps, run in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// SettingsPatch is a settings document where omitted fields keep their
// defaults.
type SettingsPatch struct {
	settings.Settings
}

// UnmarshalYAML decodes over settings.Defaults.
func (p *SettingsPatch) UnmarshalYAML(node *yaml.Node) error {
	s := settings.Defaults()
	if err := node.Decode(&s); err != nil {
		return err
	}
	p.Settings = s
	return nil
}

// FlowStep is one step of a scenario.
type FlowStep struct {
	// Invoke names the step: start, stop, move, render, poll, navigate,
	// settings or show_banner.
	Invoke string `yaml:"invoke"`

	// Args are the step's string arguments (move: card, from, to;
	// navigate: url).
	Args map[string]string `yaml:"args,omitempty"`

	// Board is the new rendering for render.
	Board []testutil.Column `yaml:"board,omitempty"`

	// Settings are the new settings for settings.
	Settings *SettingsPatch `yaml:"settings,omitempty"`

	// Trigger is the banner for show_banner.
	Trigger *present.Trigger `yaml:"trigger,omitempty"`

	// Expect specifies the step's outcome. If nil, the step must not fail.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected error code, e.g. TARGET_NOT_READY.
	Error string `yaml:"error,omitempty"`

	// Observing is the expected engine state after the step.
	Observing *bool `yaml:"observing,omitempty"`

	// Triggers is the number of triggers the step must produce.
	Triggers *int `yaml:"triggers,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trigger_contains": a trigger matches Trigger's non-empty fields
	// - "trigger_order": Items were triggered in this relative order
	// - "trigger_count": exactly Count triggers, for Item if set
	// - "final_state": State fields equal Expect
	Type string `yaml:"type"`

	Trigger *present.Trigger `yaml:"trigger,omitempty"`
	Items   []string         `yaml:"items,omitempty"`
	Item    string           `yaml:"item,omitempty"`
	Count   int              `yaml:"count,omitempty"`
	Expect  map[string]any   `yaml:"expect,omitempty"`
}

// Step names.
const (
	StepStart      = "start"
	StepStop       = "stop"
	StepMove       = "move"
	StepRender     = "render"
	StepPoll       = "poll"
	StepNavigate   = "navigate"
	StepSettings   = "settings"
	StepShowBanner = "show_banner"
)

// Assertion type constants.
const (
	AssertTriggerContains = "trigger_contains"
	AssertTriggerOrder    = "trigger_order"
	AssertTriggerCount    = "trigger_count"
	AssertFinalState      = "final_state"
)

// stateFields are the keys final_state may check.
var stateFields = map[string]bool{
	"observing":     true,
	"subscriptions": true,
	"batches":       true,
	"dispatched":    true,
	"dropped":       true,
	"presented":     true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *FlowStep) error {
	switch step.Invoke {
	case "":
		return fmt.Errorf("flow[%d]: invoke is required", index)
	case StepStart, StepStop, StepPoll:
	case StepMove:
		for _, k := range []string{"card", "from", "to"} {
			if step.Args[k] == "" {
				return fmt.Errorf("flow[%d]: move requires args.%s", index, k)
			}
		}
	case StepRender:
		if step.Board == nil {
			return fmt.Errorf("flow[%d]: render requires board", index)
		}
	case StepNavigate:
		if step.Args["url"] == "" {
			return fmt.Errorf("flow[%d]: navigate requires args.url", index)
		}
	case StepSettings:
		if step.Settings == nil {
			return fmt.Errorf("flow[%d]: settings requires settings", index)
		}
	case StepShowBanner:
		if step.Trigger == nil {
			return fmt.Errorf("flow[%d]: show_banner requires trigger", index)
		}
	default:
		return fmt.Errorf("flow[%d]: unknown step %q", index, step.Invoke)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTriggerContains:
		if a.Trigger == nil {
			return fmt.Errorf("assertions[%d]: trigger is required for trigger_contains", index)
		}
	case AssertTriggerOrder:
		if len(a.Items) == 0 {
			return fmt.Errorf("assertions[%d]: items list is required for trigger_order", index)
		}
	case AssertTriggerCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trigger_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		for k := range a.Expect {
			if !stateFields[k] {
				return fmt.Errorf("assertions[%d]: unknown state field %q", index, k)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
