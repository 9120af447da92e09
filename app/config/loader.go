package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TopicsFileName is reserved inside the sources directory for focus topics.
const TopicsFileName = "topics.yaml"

// Loader handles loading and validation of source and topic configurations
type Loader struct {
	sourcesDir string
}

// NewLoader creates a new configuration loader
func NewLoader(sourcesDir string) *Loader {
	return &Loader{sourcesDir: sourcesDir}
}

// LoadSources loads all YAML source files from the sources directory,
// skipping the reserved topics file.
func (l *Loader) LoadSources() ([]*SourceConfig, error) {
	configs := []*SourceConfig{}

	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return configs, nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		if filepath.Base(file) == TopicsFileName {
			continue
		}

		config, err := l.loadSourceFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validateSource(config); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", file, err)
		}

		configs = append(configs, config)
	}

	return configs, nil
}

// LoadTopics loads the focus topic list. A missing topics file is not an
// error; the tool works without topic tagging.
func (l *Loader) LoadTopics() ([]TopicConfig, error) {
	path := filepath.Join(l.sourcesDir, TopicsFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read topics file: %w", err)
	}

	var file topicsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse topics YAML: %w", err)
	}

	for i, topic := range file.Topics {
		if topic.Slug == "" {
			return nil, fmt.Errorf("topic at index %d is missing a slug", i)
		}
		if topic.Name == "" {
			file.Topics[i].Name = topic.Slug
		}
	}

	return file.Topics, nil
}

// loadSourceFile loads a single YAML source file
func (l *Loader) loadSourceFile(path string) (*SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config SourceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	l.setDefaults(&config, path)

	return &config, nil
}

// setDefaults applies default values to a source configuration
func (l *Loader) setDefaults(config *SourceConfig, path string) {
	if config.Name == "" {
		base := filepath.Base(path)
		config.Name = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	}
	if config.Settings.PollInterval == 0 {
		config.Settings.PollInterval = 3600 // seconds
	}
	config.Email = strings.ToLower(strings.TrimSpace(config.Email))
}

// validateSource validates a source configuration
func (l *Loader) validateSource(config *SourceConfig) error {
	if config.Email == "" {
		return fmt.Errorf("source email is required")
	}
	if !strings.Contains(config.Email, "@") {
		return fmt.Errorf("source email %q is not an address", config.Email)
	}
	if config.Settings.PollInterval < 0 {
		return fmt.Errorf("poll interval must be non-negative")
	}
	return nil
}
