package eval

import (
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

// ParseScenario decodes a scenario YAML document and applies defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	var s Scenario
	// initial_message may be written as a list; the first entry wins.
	if list, ok := k.Get("initial_message").([]interface{}); ok {
		if len(list) > 0 {
			s.InitialMessage = fmt.Sprint(list[0])
		}
		k.Delete("initial_message")
	}
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
	}

	s.applyDefaults()
	if s.Name == "" {
		return nil, fmt.Errorf("scenario name is required")
	}
	if err := s.MessagePolicy.validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return &s, nil
}

func (s *Scenario) applyDefaults() {
	s.Name = strings.TrimSpace(s.Name)
	if strings.TrimSpace(s.Persona) == "" {
		s.Persona = defaultPersona
	}
	if s.MessagePolicy == "" {
		s.MessagePolicy = PolicyExpansive
	}
	s.MessagePolicy = MessagePolicy(strings.ToLower(strings.TrimSpace(string(s.MessagePolicy))))
	if strings.TrimSpace(s.InitialMessage) == "" {
		s.InitialMessage = defaultInitialMessage
	}
	if s.MaxTurns <= 0 {
		s.MaxTurns = DefaultMaxTurns
	}
}

func (p MessagePolicy) validate() error {
	switch p {
	case PolicyMinimal, PolicyExpansive, PolicyPushback, PolicyPivot:
		return nil
	}
	return fmt.Errorf("unknown message_policy %q", p)
}

// LoadScenarioFile reads one scenario file.
func LoadScenarioFile(p string) (*Scenario, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", p, err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return s, nil
}

// LoadScenarioDir reads every .yaml/.yml file in dir, sorted by name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}
	var out []*Scenario
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		s, err := LoadScenarioFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// BuiltinScenarios returns the bundled founder scenarios.
func BuiltinScenarios() ([]*Scenario, error) {
	entries, err := builtin.ReadDir("scenarios")
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(entries))
	for _, e := range entries {
		data, err := builtin.ReadFile(path.Join("scenarios", e.Name()))
		if err != nil {
			return nil, err
		}
		s, err := ParseScenario(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SelectScenarios filters scenarios by name. No names selects all.
func SelectScenarios(all []*Scenario, names ...string) ([]*Scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]*Scenario, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	out := make([]*Scenario, 0, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("scenario not found: %s", n)
		}
		out = append(out, s)
	}
	return out, nil
}
