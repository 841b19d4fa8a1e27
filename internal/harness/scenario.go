package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a loop test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Manifest is an optional CUE manifest directory. Systems it declares
	// are scheduled first, in manifest order, with the manifest's
	// constraints; entries in Systems with the same name supply their
	// scripted behavior.
	Manifest string `yaml:"manifest,omitempty"`

	// Systems declares scripted systems. Non-deferred systems not covered
	// by the manifest are scheduled as one batch before the first step.
	Systems []SystemDef `yaml:"systems"`

	// Steps drive the loop.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// SystemDef is a scripted system.
type SystemDef struct {
	Name     string   `yaml:"name"`
	Event    string   `yaml:"event,omitempty"`
	Priority int      `yaml:"priority,omitempty"`
	After    []string `yaml:"after,omitempty"`

	// Hooks are called, in order, on every run.
	Hooks []HookDef `yaml:"hooks,omitempty"`

	// FailOn lists tick sequence numbers on which the body returns an error.
	FailOn []int64 `yaml:"fail_on,omitempty"`

	// PanicOn lists tick sequence numbers on which the body panics.
	PanicOn []int64 `yaml:"panic_on,omitempty"`

	// Deferred systems are only scheduled by a schedule step or used as a
	// replacement.
	Deferred bool `yaml:"deferred,omitempty"`
}

// HookDef is one scripted state hook call site.
type HookDef struct {
	Site string `yaml:"site"`

	// Count is how many times the site runs per tick, as in a loop body.
	// Zero means once.
	Count int `yaml:"count,omitempty"`

	// Key is an optional discriminator.
	Key string `yaml:"key,omitempty"`

	// Retain makes the release policy keep unused entries.
	Retain bool `yaml:"retain,omitempty"`

	// Until stops calling the hook after this tick sequence number.
	// Zero means forever.
	Until int64 `yaml:"until,omitempty"`
}

// Step is one scenario action. Exactly one of the action fields is set.
type Step struct {
	// Tick runs Count passes (default 1) of the named event group.
	Tick  string `yaml:"tick,omitempty"`
	Count int    `yaml:"count,omitempty"`

	Evict string `yaml:"evict,omitempty"`

	// Replace swaps the named system for the system declared as With.
	Replace string `yaml:"replace,omitempty"`
	With    string `yaml:"with,omitempty"`

	Skip   string `yaml:"skip,omitempty"`
	Unskip string `yaml:"unskip,omitempty"`

	// Schedule registers declared systems as one batch.
	Schedule []string `yaml:"schedule,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the outcome.
type Assertion struct {
	Type     string   `yaml:"type"`
	Event    string   `yaml:"event,omitempty"`
	System   string   `yaml:"system,omitempty"`
	Systems  []string `yaml:"systems,omitempty"`
	Count    *int     `yaml:"count,omitempty"`
	Contains string   `yaml:"contains,omitempty"`
	Code     string   `yaml:"code,omitempty"`
	State    string   `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertOrder     = "order"
	AssertRuns      = "runs"
	AssertEntries   = "entries"
	AssertReleased  = "released"
	AssertError     = "error"
	AssertNoErrors  = "no_errors"
	AssertState     = "state"
	AssertStepError = "step_error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative manifest path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Manifest != "" && !filepath.IsAbs(scenario.Manifest) {
		scenario.Manifest = filepath.Join(filepath.Dir(path), scenario.Manifest)
	}
	if scenario.Manifest != "" {
		if _, err := os.Stat(scenario.Manifest); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: manifest not found: %s", scenario.Manifest)
		}
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Systems) == 0 && s.Manifest == "" {
		return fmt.Errorf("systems list or manifest is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	declared := make(map[string]bool, len(s.Systems))
	for i, sys := range s.Systems {
		if sys.Name == "" {
			return fmt.Errorf("systems[%d]: name is required", i)
		}
		if declared[sys.Name] {
			return fmt.Errorf("systems[%d]: duplicate name %q", i, sys.Name)
		}
		declared[sys.Name] = true
		for j, h := range sys.Hooks {
			if h.Site == "" {
				return fmt.Errorf("systems[%d].hooks[%d]: site is required", i, j)
			}
			if h.Count < 0 {
				return fmt.Errorf("systems[%d].hooks[%d]: count must be non-negative", i, j)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, declared); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st Step, declared map[string]bool) error {
	actions := 0
	for _, set := range []bool{
		st.Tick != "",
		st.Evict != "",
		st.Replace != "",
		st.Skip != "",
		st.Unskip != "",
		len(st.Schedule) > 0,
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, got %d", index, actions)
	}
	if st.Count < 0 {
		return fmt.Errorf("steps[%d]: count must be non-negative", index)
	}
	if st.Replace != "" && !declared[st.With] {
		return fmt.Errorf("steps[%d]: replace requires with to name a declared system", index)
	}
	for _, name := range st.Schedule {
		if !declared[name] {
			return fmt.Errorf("steps[%d]: schedule names undeclared system %q", index, name)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOrder:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for order", index)
		}
	case AssertRuns, AssertEntries, AssertReleased:
		if a.System == "" {
			return fmt.Errorf("assertions[%d]: system is required for %s", index, a.Type)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertError:
		if a.System == "" {
			return fmt.Errorf("assertions[%d]: system is required for error", index)
		}
	case AssertState:
		if a.System == "" || a.State == "" {
			return fmt.Errorf("assertions[%d]: system and state are required for state", index)
		}
	case AssertStepError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for step_error", index)
		}
	case AssertNoErrors:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
