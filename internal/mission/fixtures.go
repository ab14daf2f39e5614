package mission

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// fixtureFile is the on-disk YAML shape for one pre-authored mission (a
// designer-scripted story beat, as opposed to an LLM-generated side
// mission). Grounded on the library/loader split in
// teradata-labs/loom's pkg/patterns/loader.go (read file, unmarshal into a
// yaml-tagged struct, validate, convert to the domain type).
type fixtureFile struct {
	Title       string `yaml:"title"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Paths       []Path `yaml:"paths"`
}

func (f *fixtureFile) validate(path string) error {
	if f.Title == "" {
		return fmt.Errorf("%s: title is required", path)
	}
	if len(f.Paths) == 0 {
		return fmt.Errorf("%s: at least one path is required", path)
	}
	for i, p := range f.Paths {
		if p.Name == "" {
			return fmt.Errorf("%s: paths[%d].name is required", path, i)
		}
	}
	return nil
}

// LoadFixtures reads every *.yaml/*.yml file under dir as a pre-authored
// mission, in lexical filename order, and returns them as active missions
// ready to append to a session (spec §4.8's generation cadence treats these
// as the scripted alternative to an LLM-generated story mission). An empty
// or missing dir is not an error — fixtures are optional.
func LoadFixtures(dir string) ([]Mission, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mission fixtures dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	missions := make([]Mission, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read mission fixture %s: %w", path, err)
		}

		var f fixtureFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse mission fixture %s: %w", path, err)
		}
		if err := f.validate(path); err != nil {
			return nil, err
		}

		mtype := Type(f.Type)
		if mtype != TypeStory && mtype != TypeSide {
			mtype = TypeStory
		}

		missions = append(missions, Mission{
			Title:       f.Title,
			Type:        mtype,
			Description: f.Description,
			Status:      StatusActive,
			Paths:       f.Paths,
		})
	}

	return missions, nil
}
