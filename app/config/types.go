package config

// SourceConfig describes one monitored newsletter source, loaded from a YAML
// file in the sources directory. Name is derived from the filename when the
// file does not set one.
type SourceConfig struct {
	Name     string         `yaml:"name"`
	Email    string         `yaml:"email"`
	FeedURL  string         `yaml:"feed_url"` // optional RSS mirror of the newsletter
	Settings SourceSettings `yaml:"settings"`
}

type SourceSettings struct {
	Enabled      *bool `yaml:"enabled"`       // nil means enabled
	PollInterval int   `yaml:"poll_interval"` // seconds, RSS mirror polling
}

// IsEnabled treats a missing enabled flag as true.
func (c *SourceConfig) IsEnabled() bool {
	return c.Settings.Enabled == nil || *c.Settings.Enabled
}

// TopicConfig describes one focus topic from topics.yaml.
type TopicConfig struct {
	Slug        string `yaml:"slug"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type topicsFile struct {
	Topics []TopicConfig `yaml:"topics"`
}
