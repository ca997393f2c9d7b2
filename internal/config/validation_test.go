package config

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"debug level", func(c *Config) { c.Log.Level = "debug" }, false},
		{"bad level", func(c *Config) { c.Log.Level = "trace2" }, true},
		{"address size 4", func(c *Config) { c.Target.AddressSize = 4 }, false},
		{"address size 8", func(c *Config) { c.Target.AddressSize = 8 }, false},
		{"bad address size", func(c *Config) { c.Target.AddressSize = 3 }, true},
		{"big endian", func(c *Config) { c.Target.ByteOrder = "big" }, false},
		{"bad byte order", func(c *Config) { c.Target.ByteOrder = "middle" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTargetOrder(t *testing.T) {
	assert.Nil(t, (&TargetConfig{}).Order())
	assert.Equal(t, binary.LittleEndian, (&TargetConfig{ByteOrder: "little"}).Order())
	assert.Equal(t, binary.BigEndian, (&TargetConfig{ByteOrder: "big"}).Order())
}
