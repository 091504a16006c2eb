package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults returns a Registry populated from the embedded factory-default
// seed (defaults.yaml), the generalization of the teacher's
// config.Defaults(). Required fields (main_altitude_m) are satisfied by
// the seed file, not left zero — spec.md §9 says the field has no sane
// default, so the seed's value is a documented placeholder an operator
// must override before first flight, not a physically meaningful one.
func Defaults() (*Registry, error) {
	var m map[string]yaml.Node
	if err := yaml.Unmarshal(defaultsYAML, &m); err != nil {
		return nil, fmt.Errorf("config.Defaults: parse embedded seed: %w", err)
	}
	r := NewRegistry(Fields())
	for name, node := range m {
		f, ok := r.fields[name]
		if !ok {
			continue
		}
		node := node
		if err := decodeInto(f, &node); err != nil {
			return nil, fmt.Errorf("config.Defaults: field %q: %w", name, err)
		}
	}
	return r, nil
}
