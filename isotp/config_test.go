package isotp

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() failed validation: %v", err)
	}
}

func TestValidateRejectsOutOfRangeFields(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"block size too small", func(c *Config) { c.BlockSize = -1 }},
		{"block size too large", func(c *Config) { c.BlockSize = 256 }},
		{"stmin too small", func(c *Config) { c.STmin = -1 }},
		{"stmin too large", func(c *Config) { c.STmin = 128 }},
		{"negative wait frames", func(c *Config) { c.MaxWaitFrames = -1 }},
		{"zero max payload", func(c *Config) { c.MaxPayload = 0 }},
		{"max payload too large", func(c *Config) { c.MaxPayload = 4096 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() should have rejected %s", tc.name)
			}
		})
	}
}

func TestValidateAcceptsBoundaryValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockSize = 255
	cfg.STmin = 127
	cfg.MaxWaitFrames = 0
	cfg.MaxPayload = 4095
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() rejected boundary values: %v", err)
	}
}
