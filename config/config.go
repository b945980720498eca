// Package config loads optional tuning knobs for the assembler and
// machine from a TOML file, mirroring the tunables the functional
// options carry in-process, but loadable from disk for the CLI tools
// in cmd/.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Machine holds the machine tunables a host may choose to impose.
// Neither stack is bounded by the machine itself, so a host wanting a
// limit sets one here.
type Machine struct {
	// MaxStackDepth bounds the value stack. 0 means unbounded.
	MaxStackDepth int `toml:"max_stack_depth"`
	// MaxFrameDepth bounds the frame stack. 0 means unbounded.
	MaxFrameDepth int `toml:"max_frame_depth"`
	// StrictLocals: when true, loadv/storev outside the caller-grown
	// stack region return a runtime error instead of the stack's own
	// bounds error.
	StrictLocals bool `toml:"strict_locals"`
}

// Assembler holds assembler-side tunables.
type Assembler struct {
	// MaxConstants caps the constant pool below the wire format's
	// hard limit of 255, letting a host set a stricter budget.
	MaxConstants int `toml:"max_constants"`
}

// Config is the top-level TOML document shape for both CLI tools.
type Config struct {
	Machine   Machine   `toml:"machine"`
	Assembler Assembler `toml:"assembler"`
}

// Default returns the zero-tunable configuration: unbounded stacks,
// non-strict locals, the wire format's natural 255-constant ceiling.
func Default() Config {
	return Config{
		Assembler: Assembler{MaxConstants: 255},
	}
}

// Load reads and parses a TOML config file at path, starting from
// Default() so an absent section falls back to the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}
