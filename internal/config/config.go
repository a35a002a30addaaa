// Package config loads the router's configuration from a YAML file plus
// environment and flag overrides, grounded on the teacher's
// internal/infra/catalog/loader.go: spf13/viper unmarshals into an internal
// raw shape with mapstructure tags, which is then normalized and validated
// into the immutable orchestrator.Config the core accepts. Parsing stays a
// thin outer layer; internal/orchestrator never reads a file itself.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"mcpd/internal/domain"
	"mcpd/internal/orchestrator"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// MCPROUTER_NAMESPACESTRATEGY.
const EnvPrefix = "MCPROUTER"

type rawUpstream struct {
	ID                  string            `mapstructure:"id"`
	Transport           string            `mapstructure:"transport"`
	Command             string            `mapstructure:"command"`
	Args                []string          `mapstructure:"args"`
	Env                 map[string]string `mapstructure:"env"`
	Endpoint            string            `mapstructure:"endpoint"`
	Prefix              string            `mapstructure:"prefix"`
	CategoryDescription string            `mapstructure:"categoryDescription"`
}

type rawConfig struct {
	Name                   string        `mapstructure:"name"`
	Version                string        `mapstructure:"version"`
	NamespaceStrategy      string        `mapstructure:"namespaceStrategy"`
	StartupDeadlineSeconds int           `mapstructure:"startupDeadlineSeconds"`
	ToolRefreshSeconds     int           `mapstructure:"toolRefreshSeconds"`
	Upstreams              []rawUpstream `mapstructure:"upstreams"`
}

// Loader reads and normalizes the router config file.
type Loader struct {
	logger *zap.Logger
}

// NewLoader constructs a Loader. logger may be nil.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("config")}
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("name", "mcprouter")
	v.SetDefault("version", "dev")
	v.SetDefault("namespaceStrategy", string(domain.NamespacePrefixed))
	v.SetDefault("startupDeadlineSeconds", int(domain.DefaultStartupDeadline/time.Second))
	v.SetDefault("toolRefreshSeconds", 0)
	return v
}

// Load reads path, expanding ${VAR} environment references, and returns the
// normalized Orchestrator configuration.
func (l *Loader) Load(path string) (orchestrator.Config, error) {
	if path == "" {
		return orchestrator.Config{}, errors.New("config path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.Config{}, fmt.Errorf("read config: %w", err)
	}

	v := newConfigViper()
	if err := v.ReadConfig(bytes.NewReader([]byte(os.ExpandEnv(string(data))))); err != nil {
		return orchestrator.Config{}, fmt.Errorf("parse config: %w", err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return orchestrator.Config{}, fmt.Errorf("decode config: %w", err)
	}

	return normalize(raw)
}

func normalize(raw rawConfig) (orchestrator.Config, error) {
	strategy := domain.NamespaceStrategy(raw.NamespaceStrategy)
	if strategy == "" {
		strategy = domain.NamespacePrefixed
	}
	if strategy != domain.NamespacePrefixed && strategy != domain.NamespaceFlat {
		return orchestrator.Config{}, fmt.Errorf("invalid namespaceStrategy %q", raw.NamespaceStrategy)
	}

	seen := make(map[string]struct{}, len(raw.Upstreams))
	var validationErrors []string
	upstreams := make([]domain.UpstreamDescriptor, 0, len(raw.Upstreams))
	for i, u := range raw.Upstreams {
		descriptor, errs := normalizeUpstream(u, i)
		if len(errs) > 0 {
			validationErrors = append(validationErrors, errs...)
			continue
		}
		if _, exists := seen[descriptor.ID]; exists {
			validationErrors = append(validationErrors, fmt.Sprintf("upstreams[%d]: duplicate id %q", i, descriptor.ID))
			continue
		}
		seen[descriptor.ID] = struct{}{}
		upstreams = append(upstreams, descriptor)
	}
	if len(validationErrors) > 0 {
		return orchestrator.Config{}, errors.New(strings.Join(validationErrors, "; "))
	}

	sort.Slice(upstreams, func(i, j int) bool { return upstreams[i].ID < upstreams[j].ID })

	return orchestrator.Config{
		Name:              raw.Name,
		Version:           raw.Version,
		Upstreams:         upstreams,
		NamespaceStrategy: strategy,
		StartupDeadline:   time.Duration(raw.StartupDeadlineSeconds) * time.Second,
		ToolRefreshPeriod: time.Duration(raw.ToolRefreshSeconds) * time.Second,
	}, nil
}

func normalizeUpstream(u rawUpstream, index int) (domain.UpstreamDescriptor, []string) {
	var errs []string
	if u.ID == "" {
		errs = append(errs, fmt.Sprintf("upstreams[%d]: id is required", index))
	}

	transport := domain.TransportKind(u.Transport)
	switch transport {
	case domain.TransportStdio:
		if u.Command == "" {
			errs = append(errs, fmt.Sprintf("upstreams[%d] (%s): stdio transport requires command", index, u.ID))
		}
	case domain.TransportHTTP, domain.TransportSSE:
		if u.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("upstreams[%d] (%s): %s transport requires endpoint", index, u.ID, transport))
		}
	default:
		errs = append(errs, fmt.Sprintf("upstreams[%d] (%s): unsupported transport %q", index, u.ID, u.Transport))
	}

	if len(errs) > 0 {
		return domain.UpstreamDescriptor{}, errs
	}
	return domain.UpstreamDescriptor{
		ID:                  u.ID,
		Transport:           transport,
		Command:             u.Command,
		Args:                u.Args,
		Env:                 u.Env,
		Endpoint:            u.Endpoint,
		Prefix:              u.Prefix,
		CategoryDescription: u.CategoryDescription,
	}, nil
}
