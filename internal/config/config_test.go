package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Port)
	}
	if cfg.Embedding.Provider != "hashing" {
		t.Errorf("default embedding provider = %q, want hashing", cfg.Embedding.Provider)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("default top_k = %d, want 3", cfg.Retrieval.TopK)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("unexpected port %d", cfg.Port)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config file not written: %v", err)
	}

	// Loading the written file round-trips.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if again.Database.Path != cfg.Database.Path {
		t.Errorf("database path changed across reload: %q vs %q", again.Database.Path, cfg.Database.Path)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_SHIFA_KEY", "secret-value")

	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Embedding.Provider = "huggingface"
	cfg.Embedding.APIKey = "${TEST_SHIFA_KEY}"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Embedding.APIKey != "secret-value" {
		t.Errorf("api key not expanded: %q", loaded.Embedding.APIKey)
	}
}

func TestLoadSecretsFile(t *testing.T) {
	dir := t.TempDir()

	secrets := filepath.Join(dir, "secrets.env")
	content := "# comment line\nTEST_SHIFA_SECRET=\"from-file\"\nbroken line without equals\n"
	if err := os.WriteFile(secrets, []byte(content), 0600); err != nil {
		t.Fatalf("writing secrets file: %v", err)
	}
	t.Setenv("TEST_SHIFA_SECRET", "")
	os.Unsetenv("TEST_SHIFA_SECRET")

	path := filepath.Join(dir, "config.json")
	cfg := Default()
	cfg.SecretsFile = secrets
	cfg.Embedding.Provider = "huggingface"
	cfg.Embedding.APIKey = "${TEST_SHIFA_SECRET}"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Embedding.APIKey != "from-file" {
		t.Errorf("secret not loaded from file: %q", loaded.Embedding.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Port = 70000 }, true},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, true},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "word2vec" }, true},
		{"huggingface without key", func(c *Config) {
			c.Embedding.Provider = "huggingface"
			c.Embedding.APIKey = ""
		}, true},
		{"huggingface with key", func(c *Config) {
			c.Embedding.Provider = "huggingface"
			c.Embedding.APIKey = "hf_xxx"
		}, false},
		{"negative top_k", func(c *Config) { c.Retrieval.TopK = -1 }, true},
		{"zero top_k allowed", func(c *Config) { c.Retrieval.TopK = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
