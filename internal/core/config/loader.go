package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario bundles a world and the robots placed in it. A scenario names
// either a single robot or a robots list, never both.
type Scenario struct {
	World  World   `json:"world" yaml:"world"`
	Robot  Robot   `json:"robot,omitempty" yaml:"robot,omitempty"`
	Robots []Robot `json:"robots,omitempty" yaml:"robots,omitempty"`
}

// Fleet returns the robots of the scenario in order.
func (s *Scenario) Fleet() []Robot {
	if len(s.Robots) > 0 {
		return s.Robots
	}
	return []Robot{s.Robot}
}

func (s *Scenario) ApplyDefaults() {
	s.World.ApplyDefaults()
	if len(s.Robots) == 0 {
		s.Robot.ApplyDefaults()
		return
	}
	for i := range s.Robots {
		if s.Robots[i].Name == "" {
			s.Robots[i].Name = fmt.Sprintf("robot_%d", i+1)
		}
		s.Robots[i].ApplyDefaults()
	}
}

func (s *Scenario) Validate() error {
	if err := s.World.Validate(); err != nil {
		return err
	}
	if len(s.Robots) > 0 && (s.Robot.Name != "" || len(s.Robot.Bodies) > 0) {
		return invalid("scenario", []error{fmt.Errorf("use either robot or robots, not both")})
	}
	names := make(map[string]struct{}, len(s.Robots))
	var problems []error
	for _, r := range s.Fleet() {
		if err := r.Validate(); err != nil {
			problems = append(problems, err)
		}
		if _, dup := names[r.Name]; dup {
			problems = append(problems, fmt.Errorf("duplicate robot %q", r.Name))
		}
		names[r.Name] = struct{}{}
	}
	if len(problems) == 1 && errors.Is(problems[0], ErrInvalidConfig) {
		return problems[0]
	}
	return invalid("scenario", problems)
}

// LoadYAML decodes a scenario, rejecting unknown keys, then applies defaults and validates it.
func LoadYAML(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrInvalidConfig, err)
	}
	return finish(&s)
}

// LoadJSON is LoadYAML for JSON documents.
func LoadJSON(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: decode json: %w", ErrInvalidConfig, err)
	}
	return finish(&s)
}

// LoadScenarioFile picks the decoder from the file extension.
func LoadScenarioFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadJSON(bytes.NewReader(data))
	}
	return LoadYAML(bytes.NewReader(data))
}

func finish(s *Scenario) (*Scenario, error) {
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
