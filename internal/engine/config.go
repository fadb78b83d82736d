package engine

import (
	"fmt"
	"os"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-loaded FSM definition (spec §6). Top-level keys:
// metadata, initial_state, states, events, transitions, actions.
type Config struct {
	Metadata    map[string]interface{} `yaml:"metadata"`
	InitialState string                 `yaml:"initial_state"`
	States      []string               `yaml:"states"`
	Events      []string               `yaml:"events"`
	Transitions []TransitionConfig     `yaml:"transitions"`
	Actions     map[string][]ActionConfig `yaml:"actions"`
}

// TransitionConfig is one (from, event, to) rule. From may be "*"
// (wildcard) or "timeout(<seconds>)" may appear in Event.
type TransitionConfig struct {
	From  string `yaml:"from"`
	Event string `yaml:"event"`
	To    string `yaml:"to"`
}

// ActionConfig is one entry in a state's action list: a type tag plus
// free-form action-specific keys.
type ActionConfig map[string]interface{}

// Type returns the action's "type" key, or "" if absent/non-string.
func (a ActionConfig) Type() string {
	t, _ := a["type"].(string)
	return t
}

// MachineName returns metadata.machine_name, or "" if unset.
func (c *Config) MachineName() string {
	if c.Metadata == nil {
		return ""
	}
	name, _ := c.Metadata["machine_name"].(string)
	return name
}

// LoadConfig reads and parses an FSM YAML file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.InitialState == "" {
		return nil, fmt.Errorf("config %s: initial_state is required", path)
	}
	return &cfg, nil
}

var timeoutEventPattern = regexp.MustCompile(`^timeout\(([0-9]+(?:\.[0-9]+)?)\)$`)

// ParseTimeoutEvent reports whether event is a timed-transition event
// name ("timeout(<seconds>)") and, if so, its duration in seconds.
func ParseTimeoutEvent(event string) (seconds float64, ok bool) {
	m := timeoutEventPattern.FindStringSubmatch(event)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
