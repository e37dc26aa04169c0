package settings

import (
	"bytes"
	"flag"
	"fmt"
	"github.com/ATenderholt/rainbow-webhook/internal/domain"
	"gopkg.in/yaml.v2"
	"os"
	"strings"
	"time"
)

const (
	DefaultBasePort       = 9000
	DefaultBackend        = "memory"
	DefaultRegion         = "us-west-2"
	DefaultWebhookTimeout = 10 * time.Second

	MemoryBackend = "memory"
	S3Backend     = "s3"
)

type Config struct {
	BasePort   int    `yaml:"port"`
	IsDebug    bool   `yaml:"debug"`
	Backend    string `yaml:"backend"`
	S3Endpoint string `yaml:"s3-endpoint"`
	Region     string `yaml:"region"`
	AccessKey  string `yaml:"access-key"`
	SecretKey  string `yaml:"secret-key"`

	Webhook        string        `yaml:"webhook"`
	WebhookTimeout time.Duration `yaml:"webhook-timeout"`
	Filter         domain.Filter `yaml:"filter"`

	ConfigFile string `yaml:"-"`
}

func (config *Config) Address() string {
	return fmt.Sprintf(":%d", config.BasePort)
}

func (config *Config) HasWebhook() bool {
	return config.Webhook != ""
}

func (config *Config) Validate() error {
	if config.BasePort <= 0 || config.BasePort > 65535 {
		return fmt.Errorf("port must be between 1 and 65535 but was %d", config.BasePort)
	}

	if config.Backend != MemoryBackend && config.Backend != S3Backend {
		return fmt.Errorf("backend must be %s or %s but was %q", MemoryBackend, S3Backend, config.Backend)
	}

	if config.WebhookTimeout <= 0 {
		return fmt.Errorf("webhook-timeout must be positive but was %s", config.WebhookTimeout)
	}

	return config.Filter.Validate()
}

func DefaultConfig() *Config {
	return &Config{
		BasePort:       DefaultBasePort,
		IsDebug:        false,
		Backend:        DefaultBackend,
		Region:         DefaultRegion,
		WebhookTimeout: DefaultWebhookTimeout,
	}
}

// FilterValue parses comma-separated name=value filter rules, e.g.
// "prefix=logs/,suffix=.log".
type FilterValue struct {
	filter *domain.Filter
}

func (v FilterValue) Set(s string) error {
	var rules []domain.FilterRule
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}

		pieces := strings.SplitN(part, "=", 2)
		if len(pieces) != 2 {
			return fmt.Errorf("expected filter rule as name=value but got %q", part)
		}

		rule := domain.FilterRule{Name: pieces[0], Value: pieces[1]}
		if err := rule.Validate(); err != nil {
			return err
		}

		rules = append(rules, rule)
	}

	v.filter.Rules = rules
	return nil
}

func (v FilterValue) String() string {
	if v.filter == nil {
		return ""
	}

	parts := make([]string, 0, len(v.filter.Rules))
	for _, rule := range v.filter.Rules {
		parts = append(parts, rule.Name+"="+rule.Value)
	}

	return strings.Join(parts, ",")
}

func register(flags *flag.FlagSet, cfg *Config) {
	flags.IntVar(&cfg.BasePort, "port", cfg.BasePort, "Port used for HTTP")
	flags.BoolVar(&cfg.IsDebug, "debug", cfg.IsDebug, "Enable debug logging")
	flags.StringVar(&cfg.Backend, "backend", cfg.Backend, "Backing blob store: memory or s3")
	flags.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "Endpoint URL for the s3 backend (e.g. minio); empty uses AWS")
	flags.StringVar(&cfg.Region, "region", cfg.Region, "Region for the s3 backend")
	flags.StringVar(&cfg.AccessKey, "access-key", cfg.AccessKey, "Access key for the s3 backend; empty uses the default credential chain")
	flags.StringVar(&cfg.SecretKey, "secret-key", cfg.SecretKey, "Secret key for the s3 backend")
	flags.StringVar(&cfg.Webhook, "webhook", cfg.Webhook, "URL notified with bucket and key after each successful write")
	flags.DurationVar(&cfg.WebhookTimeout, "webhook-timeout", cfg.WebhookTimeout, "Timeout for each webhook request")
	flags.Var(FilterValue{&cfg.Filter}, "filter", "Comma-separated prefix=/suffix= rules limiting which keys are notified")
	flags.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML file with configuration; flags override its values")
}

func parse(name string, args []string, cfg *Config) (string, error) {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)

	var buf bytes.Buffer
	flags.SetOutput(&buf)

	register(flags, cfg)

	err := flags.Parse(args)
	return buf.String(), err
}

// FromFlags builds a Config from defaults, the optional -config YAML file
// and then the command line, in increasing order of precedence.
func FromFlags(name string, args []string) (*Config, string, error) {
	cfg := DefaultConfig()

	output, err := parse(name, args, cfg)
	if err != nil {
		return nil, output, err
	}

	if cfg.ConfigFile != "" {
		path := cfg.ConfigFile

		cfg = DefaultConfig()
		if err := LoadFile(path, cfg); err != nil {
			return nil, output, err
		}

		output, err = parse(name, args, cfg)
		if err != nil {
			return nil, output, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, output, err
	}

	return cfg, output, nil
}

func LoadFile(path string, cfg *Config) error {
	logger.Debugf("Loading configuration from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read configuration from %s: %w", path, err)
	}

	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("unable to decode configuration at %s from yaml: %w", path, err)
	}

	return nil
}
