package main

import (
	"strings"

	"mercator-hq/mixpolicy/pkg/policy/manager"
	"mercator-hq/mixpolicy/pkg/policy/mix"
	"mercator-hq/mixpolicy/pkg/policy/source"
)

// loadRegistry parses the mix file at path and registers its mixes in a
// fresh registry bounded by limits, the way the server would at startup.
func loadRegistry(path string, limits manager.RegistryConfig) (*manager.Registry, error) {
	mixes, err := source.Load(path)
	if err != nil {
		return nil, err
	}

	token := mix.NewToken()
	for _, m := range mixes {
		m.Token = token
	}

	reg := manager.NewRegistry(limits)
	if err := reg.AddAll(mixes); err != nil {
		return nil, err
	}
	return reg, nil
}

func criteriaString(m *mix.Mix) string {
	parts := make([]string, len(m.Criteria))
	for i, c := range m.Criteria {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}
