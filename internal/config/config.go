// Package config loads the engine's configuration once at process startup
// into a single immutable value. Nothing downstream re-reads os.Getenv.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ExtractionProvider selects the C4 vendor.
type ExtractionProvider string

const (
	ProviderAnthropic ExtractionProvider = "anthropic"
	ProviderXAI       ExtractionProvider = "xai"
	ProviderGoogle    ExtractionProvider = "google"
)

// Config is the fully-resolved, immutable configuration for one engine
// instance. Construct it with Load; there is no package-level singleton.
type Config struct {
	DataDir string

	ExtractionProvider ExtractionProvider
	AnthropicAPIKey    string
	XAIAPIKey          string
	GoogleAPIKey       string
	VoyageAPIKey       string

	EmbeddingDims int

	ContainerTagPrefix string
	UserContainerTag   string
	ProjectContainerTag string

	// SearchThreshold is the hybrid-search cosine floor below which a
	// vector hit is dropped. 0.2 permits loose recall (the "source"
	// value); production deployments typically override to 0.45.
	SearchThreshold float64

	// NearDuplicateCosine is the cosine similarity above which an
	// incoming fact is treated as a near-duplicate of an existing row.
	NearDuplicateCosine float64

	// EnumerationBaseScore is the synthetic score attached to rows
	// returned by the non-ranked enumeration union, so they sort below
	// genuine vector hits without needing a second result shape.
	EnumerationBaseScore float64
}

const (
	defaultContainerTagPrefix   = "codexfi"
	defaultSearchThreshold      = 0.2
	defaultNearDuplicateCosine  = 0.92
	defaultEnumerationBaseScore = 0.35
)

// Load resolves configuration from, in ascending precedence:
// compiled-in defaults, an optional DATA_DIR/config.yaml, then the
// process environment. It is called once at process startup.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("config")

	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("extraction_provider", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("xai_api_key", "")
	v.SetDefault("google_api_key", "")
	v.SetDefault("voyage_api_key", "")
	v.SetDefault("embedding_dims", 1024)
	v.SetDefault("container_tag_prefix", defaultContainerTagPrefix)
	v.SetDefault("user_container_tag", "")
	v.SetDefault("project_container_tag", "")
	v.SetDefault("search_threshold", defaultSearchThreshold)
	v.SetDefault("near_duplicate_cosine", defaultNearDuplicateCosine)
	v.SetDefault("enumeration_base_score", defaultEnumerationBaseScore)

	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"data_dir", "extraction_provider", "anthropic_api_key", "xai_api_key",
		"google_api_key", "voyage_api_key", "embedding_dims", "container_tag_prefix",
		"user_container_tag", "project_container_tag", "search_threshold",
		"near_duplicate_cosine", "enumeration_base_score",
	} {
		envName := strings.ToUpper(key)
		if err := v.BindEnv(key, envName); err != nil {
			return Config{}, fmt.Errorf("config: bind env %s: %w", envName, err)
		}
	}

	dataDir := v.GetString("data_dir")
	configPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}
	// DATA_DIR may have been overridden by the config file itself; take
	// the final resolved value for the struct below.
	dataDir = v.GetString("data_dir")

	cfg := Config{
		DataDir:             dataDir,
		ExtractionProvider:  ExtractionProvider(v.GetString("extraction_provider")),
		AnthropicAPIKey:     v.GetString("anthropic_api_key"),
		XAIAPIKey:           v.GetString("xai_api_key"),
		GoogleAPIKey:        v.GetString("google_api_key"),
		VoyageAPIKey:        v.GetString("voyage_api_key"),
		EmbeddingDims:       v.GetInt("embedding_dims"),
		ContainerTagPrefix:  v.GetString("container_tag_prefix"),
		UserContainerTag:    v.GetString("user_container_tag"),
		ProjectContainerTag: v.GetString("project_container_tag"),
		SearchThreshold:     v.GetFloat64("search_threshold"),
		NearDuplicateCosine: v.GetFloat64("near_duplicate_cosine"),
		EnumerationBaseScore: v.GetFloat64("enumeration_base_score"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.EmbeddingDims <= 0 {
		return fmt.Errorf("config: embedding_dims must be positive, got %d", c.EmbeddingDims)
	}
	if c.VoyageAPIKey == "" {
		return fmt.Errorf("config: voyage_api_key is required")
	}
	switch c.ExtractionProvider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("config: extraction_provider=anthropic requires anthropic_api_key")
		}
	case ProviderXAI:
		if c.XAIAPIKey == "" {
			return fmt.Errorf("config: extraction_provider=xai requires xai_api_key")
		}
	case ProviderGoogle:
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("config: extraction_provider=google requires google_api_key")
		}
	default:
		return fmt.Errorf("config: extraction_provider must be one of anthropic, xai, google, got %q", c.ExtractionProvider)
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codexfi"
	}
	return filepath.Join(home, ".codexfi")
}
