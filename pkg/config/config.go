// Copyright 2022-2024 The Parca Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"
)

var ErrEmptyConfig = errors.New("empty config")

// Config holds the settings shared by every profile treeprof writes.
type Config struct {
	// ExternalLabels are attached to every written profile.
	ExternalLabels map[string]string `yaml:"external_labels,omitempty"`
	// Comments are added to every encoded profile.
	Comments []string `yaml:"comments,omitempty"`
}

func (c Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<error creating config string: %s>", err)
	}
	return string(b)
}

// Validate checks that external labels are valid label pairs.
func (c *Config) Validate() error {
	for name, value := range c.ExternalLabels {
		if !model.LabelName(name).IsValid() {
			return fmt.Errorf("invalid external label name %q", name)
		}
		if name == model.MetricNameLabel {
			return fmt.Errorf("external label %q is reserved", name)
		}
		if !model.LabelValue(value).IsValid() {
			return fmt.Errorf("invalid value for external label %q", name)
		}
	}
	return nil
}

// LabelSet returns the external labels as a label set.
func (c *Config) LabelSet() model.LabelSet {
	ls := make(model.LabelSet, len(c.ExternalLabels))
	for name, value := range c.ExternalLabels {
		ls[model.LabelName(name)] = model.LabelValue(value)
	}
	return ls
}

// Load parses the YAML input s into a Config.
func Load(b []byte) (*Config, error) {
	if len(b) == 0 {
		return nil, ErrEmptyConfig
	}

	cfg := &Config{}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile parses the given YAML file into a Config.
func LoadFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(content)
	if err != nil {
		return nil, fmt.Errorf("parsing YAML file %s: %w", filename, err)
	}
	return cfg, nil
}
