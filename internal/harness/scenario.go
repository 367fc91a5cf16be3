package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/coffeematch/internal/model"
)

// DefaultStart is the clock's starting instant when a scenario sets none.
var DefaultStart = time.Date(2025, time.January, 1, 10, 0, 0, 0, time.UTC)

// Scenario describes one lifecycle run.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Seed seeds the pairing random source.
	Seed uint64 `yaml:"seed,omitempty"`

	// Threshold overrides the inactivity threshold.
	Threshold int `yaml:"threshold,omitempty"`

	// Start is the RFC 3339 clock start; DefaultStart when empty.
	Start string `yaml:"start,omitempty"`

	// Unreachable participants fail every delivery from the start.
	Unreachable []string `yaml:"unreachable,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action. Exactly one action field is set; At may accompany it
// and moves the clock first.
type Step struct {
	At string `yaml:"at,omitempty"`

	Subscribe   []string     `yaml:"subscribe,omitempty"`
	Unsubscribe string       `yaml:"unsubscribe,omitempty"`
	Unreachable string       `yaml:"unreachable,omitempty"`
	Reachable   string       `yaml:"reachable,omitempty"`
	Round       string       `yaml:"round,omitempty"`
	FollowUps   string       `yaml:"follow_ups,omitempty"`
	Answer      *AnswerStep  `yaml:"answer,omitempty"`
	Inactivity  string       `yaml:"inactivity,omitempty"`
	Rematch     *RematchStep `yaml:"rematch,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// AnswerStep answers a participant's follow-up for a period. Participant
// "*" answers every pending follow-up of the period.
type AnswerStep struct {
	Participant string `yaml:"participant"`
	Period      string `yaml:"period"`
	Answer      string `yaml:"answer"`
}

// RematchStep asks for a rematch of the participant's match in a period.
type RematchStep struct {
	Participant string `yaml:"participant"`
	Period      string `yaml:"period"`
}

// Expect checks a step's outcome. Error is an engine error code; the other
// keys are compared against the step's result counters.
type Expect struct {
	Error  string         `yaml:"error,omitempty"`
	Result map[string]int `yaml:"result,omitempty"`
}

// Assertion checks final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Participant string `yaml:"participant,omitempty"`
	Kind        string `yaml:"kind,omitempty"`
	Want        *bool  `yaml:"want,omitempty"`
	Count       int    `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertSubscribed      = "subscribed"
	AssertReachable       = "reachable"
	AssertStreak          = "streak"
	AssertSubscriberCount = "subscriber_count"
	AssertNotifications   = "notifications"
	AssertHistoryCount    = "history_count"
	AssertPairedCount     = "paired_count"
)

// op returns the step's action name and argument.
func (s Step) op() (name, arg string) {
	switch {
	case len(s.Subscribe) > 0:
		return "subscribe", fmt.Sprint(s.Subscribe)
	case s.Unsubscribe != "":
		return "unsubscribe", s.Unsubscribe
	case s.Unreachable != "":
		return "unreachable", s.Unreachable
	case s.Reachable != "":
		return "reachable", s.Reachable
	case s.Round != "":
		return "round", s.Round
	case s.FollowUps != "":
		return "follow_ups", s.FollowUps
	case s.Answer != nil:
		return "answer", s.Answer.Participant + " " + s.Answer.Period + " " + s.Answer.Answer
	case s.Inactivity != "":
		return "inactivity", s.Inactivity
	case s.Rematch != nil:
		return "rematch", s.Rematch.Participant + " " + s.Rematch.Period
	case s.At != "":
		return "at", s.At
	}
	return "", ""
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{
		len(s.Subscribe) > 0, s.Unsubscribe != "", s.Unreachable != "",
		s.Reachable != "", s.Round != "", s.FollowUps != "", s.Answer != nil,
		s.Inactivity != "", s.Rematch != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Threshold < 0 {
		return fmt.Errorf("threshold must be non-negative")
	}
	if s.Start != "" {
		if _, err := time.Parse(time.RFC3339, s.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch n := step.actions(); {
	case n > 1:
		return fmt.Errorf("only one action per step")
	case n == 0 && step.At == "":
		return fmt.Errorf("no action")
	}
	if step.At != "" {
		if _, err := time.Parse(time.RFC3339, step.At); err != nil {
			return fmt.Errorf("at: %w", err)
		}
	}
	if a := step.Answer; a != nil {
		if a.Participant == "" || a.Period == "" {
			return fmt.Errorf("answer: participant and period are required")
		}
		if _, ok := model.ParseAnswer(a.Answer); !ok {
			return fmt.Errorf("answer: %q is not yes or no", a.Answer)
		}
	}
	if r := step.Rematch; r != nil && (r.Participant == "" || r.Period == "") {
		return fmt.Errorf("rematch: participant and period are required")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertSubscribed, AssertReachable:
		if a.Participant == "" || a.Want == nil {
			return fmt.Errorf("%s needs participant and want", a.Type)
		}
	case AssertStreak, AssertPairedCount:
		if a.Participant == "" {
			return fmt.Errorf("%s needs participant", a.Type)
		}
	case AssertNotifications:
		if a.Kind == "" {
			return fmt.Errorf("notifications needs kind")
		}
	case AssertSubscriberCount, AssertHistoryCount:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("count must be non-negative")
	}
	return nil
}
