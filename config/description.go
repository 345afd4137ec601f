package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DescriptionFile is written next to the CSV output of every run.
const DescriptionFile = "description.yml"

// Description records what a run was and how it was configured.
type Description struct {
	RunID     string    `yaml:"run_id"`
	Name      string    `yaml:"name"`
	StartedAt time.Time `yaml:"started_at"`
	Config    *Config   `yaml:"config"`
	Plan      []int     `yaml:"onion_plan"`
}

func (c *Config) Describe(runID string, startedAt time.Time) Description {
	return Description{RunID: runID, Name: c.Name(), StartedAt: startedAt, Config: c, Plan: c.OnionPlan()}
}

// WriteDescription writes d as YAML into dir.
func WriteDescription(dir string, d Description) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "config.WriteDescription(): failed to create %s", dir)
	}
	data, err := yaml.Marshal(&d)
	if err != nil {
		return "", errors.Wrap(err, "config.WriteDescription(): failed to marshal description")
	}
	path := filepath.Join(dir, DescriptionFile)
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "config.WriteDescription(): failed to write %s", path)
	}
	return path, nil
}
