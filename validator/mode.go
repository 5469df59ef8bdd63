package validator

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Mode selects how a signature is routed by the account.
type Mode uint32

const (
	// ModeSudo validates with the account's default validator.
	ModeSudo Mode = 0x00000000
	// ModePlugin validates with a validator already registered for the
	// call's selector.
	ModePlugin Mode = 0x00000001
	// ModeEnable registers the validator and validates in one operation.
	ModeEnable Mode = 0x00000002
)

// Tag returns the 4-byte big-endian prefix for m.
func (m Mode) Tag() []byte {
	tag := make([]byte, 4)
	binary.BigEndian.PutUint32(tag, uint32(m))
	return tag
}

func (m Mode) String() string {
	switch m {
	case ModeSudo:
		return "sudo"
	case ModePlugin:
		return "plugin"
	case ModeEnable:
		return "enable"
	default:
		return fmt.Sprintf("mode(%#08x)", uint32(m))
	}
}

// ParseMode parses a mode name as written in configuration.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sudo":
		return ModeSudo, nil
	case "plugin":
		return ModePlugin, nil
	case "enable":
		return ModeEnable, nil
	default:
		return 0, fmt.Errorf("validator: unknown mode %q", s)
	}
}
