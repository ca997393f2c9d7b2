package config

import (
	"encoding/binary"
	"fmt"
)

// Validate checks the config for values the engine cannot work with.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	switch c.Target.AddressSize {
	case 0, 4, 8:
	default:
		return fmt.Errorf("address_size must be 4 or 8, got %d", c.Target.AddressSize)
	}

	switch c.Target.ByteOrder {
	case "", "little", "big":
	default:
		return fmt.Errorf("byte_order must be \"little\" or \"big\", got %q", c.Target.ByteOrder)
	}
	return nil
}

// Order maps the config's byte_order string to its binary.ByteOrder.
// The zero value means "take it from the image".
func (c *TargetConfig) Order() binary.ByteOrder {
	switch c.ByteOrder {
	case "big":
		return binary.BigEndian
	case "little":
		return binary.LittleEndian
	default:
		return nil
	}
}
