package automation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the YAML shape of a rules bootstrap file.
type rulesFile struct {
	Rules []*Rule `yaml:"rules"`
}

// LoadRulesFile reads automation rules from a YAML file. The file is a
// bootstrap: rules defined there are registered at startup alongside any
// rules restored from a snapshot.
func LoadRulesFile(path string) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	for i, r := range f.Rules {
		if r.Name == "" {
			return nil, fmt.Errorf("rules file: rule %d has no name", i)
		}
		if !ValidTrigger(r.Trigger) {
			return nil, fmt.Errorf("rules file: rule %q has unknown trigger %q", r.Name, r.Trigger)
		}
	}
	return f.Rules, nil
}
