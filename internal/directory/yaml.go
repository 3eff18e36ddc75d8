package directory

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/barberfinder/internal/model"
)

// YAMLDirectory reads providers from a fixture file on every List, so edits
// are picked up without a restart.
type YAMLDirectory struct {
	Path string
}

type yamlFile struct {
	Providers []model.Provider `yaml:"providers"`
}

func (d YAMLDirectory) List(context.Context) ([]model.Provider, error) {
	return LoadYAML(d.Path)
}

// LoadYAML parses a providers fixture.
func LoadYAML(path string) ([]model.Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "directory: read %s", path)
	}
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "directory: parse %s", path)
	}
	if err := validate(f.Providers); err != nil {
		return nil, err
	}
	return f.Providers, nil
}
