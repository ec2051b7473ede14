package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Dialogue.MinSymptoms != 2 || cfg.Dialogue.MaxSymptoms != 6 || cfg.Dialogue.TopN != 3 {
		t.Errorf("dialogue defaults = %+v", cfg.Dialogue)
	}
	if cfg.Matching.TokenThreshold != 87 || cfg.Matching.PhraseThreshold != 90 {
		t.Errorf("matching defaults = %+v", cfg.Matching)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DIALOGUE_MAX_SYMPTOMS", "4")
	t.Setenv("MATCH_TOKEN_THRESHOLD", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want override", cfg.Port)
	}
	if cfg.Dialogue.MaxSymptoms != 4 {
		t.Errorf("MaxSymptoms = %d, want 4", cfg.Dialogue.MaxSymptoms)
	}
	// Unparseable integers fall back to the default.
	if cfg.Matching.TokenThreshold != 87 {
		t.Errorf("TokenThreshold = %d, want default 87", cfg.Matching.TokenThreshold)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty model path", func(c *Config) { c.ModelPath = "" }},
		{"threshold out of range", func(c *Config) { c.Matching.KeyThreshold = 101 }},
		{"min symptoms below one", func(c *Config) { c.Dialogue.MinSymptoms = 0 }},
		{"max below min", func(c *Config) { c.Dialogue.MaxSymptoms = 1 }},
		{"top n below one", func(c *Config) { c.Dialogue.TopN = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid configuration accepted")
			}
		})
	}
}
