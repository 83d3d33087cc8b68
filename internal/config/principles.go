package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ethicore/arbiter/internal/errors"
	"github.com/ethicore/arbiter/internal/risk"
)

// principlesFile is the on-disk shape of a custom principle set.
type principlesFile struct {
	Principles []risk.Principle `yaml:"principles"`
}

// LoadPrinciples reads a custom risk-principle set from a YAML file.
// The file replaces the built-in defaults wholesale, so it must carry
// every principle the deployment wants scored.
func LoadPrinciples(path string) ([]risk.Principle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read principles file: %w", err)
	}

	var f principlesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse principles file %s: %w", path, err)
	}
	if len(f.Principles) == 0 {
		return nil, errors.ConfigErrorf("principles file %s defines no principles", path)
	}
	for _, p := range f.Principles {
		if p.Name == "" {
			return nil, errors.ConfigErrorf("principles file %s: principle without a name", path)
		}
		if p.Weight <= 0 {
			return nil, errors.ConfigErrorf("principles file %s: principle %q needs a positive weight", path, p.Name)
		}
	}
	return f.Principles, nil
}
