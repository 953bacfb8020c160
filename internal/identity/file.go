package identity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type mappingsFile struct {
	Identities []struct {
		VCS    string `yaml:"vcs"`
		Person string `yaml:"person"`
	} `yaml:"identities"`
}

// LoadMappingsFile reads configured mappings from a YAML file of the form
//
//	identities:
//	  - vcs: octocat
//	    person: Mona Lisa
func LoadMappingsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity mappings: %w", err)
	}

	var f mappingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse identity mappings %s: %w", path, err)
	}

	out := make(map[string]string, len(f.Identities))
	for i, e := range f.Identities {
		if e.VCS == "" || e.Person == "" {
			return nil, fmt.Errorf("identity mapping %d in %s: vcs and person are required", i+1, path)
		}
		out[Normalize(e.VCS)] = e.Person
	}
	return out, nil
}
