package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Logs configures the postfix delivery-log family: a directory of
// historical files read once at startup and one live file to tail.
type Logs struct {
	Dir   string   `yaml:"dir"`
	Files []string `yaml:"files"`
	Tail  string   `yaml:"tail"`
}

// Mails configures the raw mail-content family, same shape as Logs.
type Mails struct {
	Dir   string   `yaml:"dir"`
	Files []string `yaml:"files"`
	Tail  string   `yaml:"tail"`
}

// Listen configures the query endpoint address.
type Listen struct {
	IP   string `yaml:"ip"`
	Port string `yaml:"port"`
}

// TLS holds optional certificate paths for the query endpoint.
type TLS struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// Config holds the full application configuration.
type Config struct {
	TLS    *TLS   `yaml:"tls"`
	Log    Logs   `yaml:"log"`
	Mail   Mails  `yaml:"mail"`
	Listen Listen `yaml:"listen"`

	// MailParsingDelay is how many seconds a batch of parsed subjects is
	// held back before being applied, giving the delivery-log pipeline
	// time to insert the matching records first.
	MailParsingDelay int `yaml:"mail_parsing_delay"`
}

// Load reads and deserializes the YAML configuration at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Address returns the full listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Listen.IP, c.Listen.Port)
}

// ParsingDelay returns the subject-update delay as a duration.
func (c *Config) ParsingDelay() time.Duration {
	return time.Duration(c.MailParsingDelay) * time.Second
}
