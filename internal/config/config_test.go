package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DATA_DIR", "EXTRACTION_PROVIDER", "ANTHROPIC_API_KEY", "XAI_API_KEY",
		"GOOGLE_API_KEY", "VOYAGE_API_KEY", "EMBEDDING_DIMS", "CONTAINER_TAG_PREFIX",
		"USER_CONTAINER_TAG", "PROJECT_CONTAINER_TAG", "SEARCH_THRESHOLD",
		"NEAR_DUPLICATE_COSINE", "ENUMERATION_BASE_SCORE",
	}
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadRequiresVoyageAPIKey(t *testing.T) {
	clearEnv(t)
	os.Setenv("EXTRACTION_PROVIDER", "anthropic")
	os.Setenv("ANTHROPIC_API_KEY", "sk-ant-xxx")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when voyage_api_key is missing")
	}
}

func TestLoadRequiresMatchingProviderKey(t *testing.T) {
	clearEnv(t)
	os.Setenv("VOYAGE_API_KEY", "voyage-xxx")
	os.Setenv("EXTRACTION_PROVIDER", "xai")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when xai_api_key is missing for provider xai")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("VOYAGE_API_KEY", "voyage-xxx")
	os.Setenv("EXTRACTION_PROVIDER", "anthropic")
	os.Setenv("ANTHROPIC_API_KEY", "sk-ant-xxx")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ContainerTagPrefix != defaultContainerTagPrefix {
		t.Errorf("ContainerTagPrefix = %q, want %q", cfg.ContainerTagPrefix, defaultContainerTagPrefix)
	}
	if cfg.SearchThreshold != defaultSearchThreshold {
		t.Errorf("SearchThreshold = %v, want %v", cfg.SearchThreshold, defaultSearchThreshold)
	}
	if cfg.NearDuplicateCosine != defaultNearDuplicateCosine {
		t.Errorf("NearDuplicateCosine = %v, want %v", cfg.NearDuplicateCosine, defaultNearDuplicateCosine)
	}
	if cfg.EnumerationBaseScore != defaultEnumerationBaseScore {
		t.Errorf("EnumerationBaseScore = %v, want %v", cfg.EnumerationBaseScore, defaultEnumerationBaseScore)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	clearEnv(t)
	os.Setenv("VOYAGE_API_KEY", "voyage-xxx")
	os.Setenv("EXTRACTION_PROVIDER", "anthropic")
	os.Setenv("ANTHROPIC_API_KEY", "sk-ant-xxx")
	os.Setenv("EMBEDDING_DIMS", "256")
	os.Setenv("CONTAINER_TAG_PREFIX", "acme")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EmbeddingDims != 256 {
		t.Errorf("EmbeddingDims = %d, want 256", cfg.EmbeddingDims)
	}
	if cfg.ContainerTagPrefix != "acme" {
		t.Errorf("ContainerTagPrefix = %q, want acme", cfg.ContainerTagPrefix)
	}
}

func TestLoadReadsConfigFileUnderDataDir(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	os.Setenv("DATA_DIR", dir)
	os.Setenv("VOYAGE_API_KEY", "voyage-xxx")
	os.Setenv("EXTRACTION_PROVIDER", "anthropic")
	os.Setenv("ANTHROPIC_API_KEY", "sk-ant-xxx")

	yaml := "embedding_dims: 512\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EmbeddingDims != 512 {
		t.Errorf("EmbeddingDims = %d, want 512 (from config.yaml)", cfg.EmbeddingDims)
	}
}

func TestLoadRejectsInvalidProvider(t *testing.T) {
	clearEnv(t)
	os.Setenv("VOYAGE_API_KEY", "voyage-xxx")
	os.Setenv("EXTRACTION_PROVIDER", "not-a-provider")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid extraction_provider")
	}
}
