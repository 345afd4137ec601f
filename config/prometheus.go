package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Global struct {
	ScrapeInterval string         `yaml:"scrape_interval"`
	ExternalLabels ExternalLabels `yaml:"external_labels"`
}

type ExternalLabels struct {
	Monitor string `yaml:"monitor"`
}

type ScrapeConfig struct {
	JobName        string         `yaml:"job_name"`
	ScrapeInterval string         `yaml:"scrape_interval"`
	StaticConfigs  []StaticConfig `yaml:"static_configs"`
}

type StaticConfig struct {
	Targets []string `yaml:"targets"`
}

type PromConfig struct {
	Global        Global         `yaml:"global"`
	ScrapeConfigs []ScrapeConfig `yaml:"scrape_configs"`
}

// InitPrometheusConfig writes a prometheus.yml that scrapes the simulator's metrics endpoint.
func InitPrometheusConfig(path string, host string, port int) error {
	promCfg := PromConfig{
		Global: Global{
			ScrapeInterval: "15s",
			ExternalLabels: ExternalLabels{
				Monitor: "onion-routing-wsn",
			},
		},
		ScrapeConfigs: []ScrapeConfig{
			{
				JobName:        "wsn-sim",
				ScrapeInterval: "5s",
				StaticConfigs: []StaticConfig{
					{
						Targets: []string{fmt.Sprintf("%s:%d", host, port)},
					},
				},
			},
		},
	}

	data, err := yaml.Marshal(&promCfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal prometheus config")
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open file for writing")
	}
	defer file.Close()

	if _, err = file.Write(data); err != nil {
		return errors.Wrap(err, "failed to write prometheus config to file")
	}

	// Ensure the data is flushed to disk immediately
	if err = file.Sync(); err != nil {
		return errors.Wrap(err, "failed to flush prometheus config to disk")
	}

	slog.Info("prometheus config written to file", "path", path)
	return nil
}
