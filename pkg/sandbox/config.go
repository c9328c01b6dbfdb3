package sandbox

import (
	"fmt"
	"time"
)

// Execution engines supported by wazero.
const (
	EngineInterpreter = "interpreter"
	EngineCompiler    = "compiler"
)

// WasmPageSize is the size of one page of linear memory.
const WasmPageSize = 65536

// Config bounds every evaluation.
type Config struct {
	// MemoryPages caps the linear memory of an instance.
	// Default: 1 (64 KiB).
	MemoryPages uint32

	// FuelBudget is the number of instructions one evaluation may execute.
	// Default: 1,000,000.
	FuelBudget int64

	// Timeout is the wall-clock ceiling of one evaluation, instantiation
	// included. It is a backstop for host stalls: a runaway guest exhausts
	// FuelBudget long before the default timeout on an unloaded host, so
	// the fault kind is only deterministic when fuel decides.
	// Default: 100ms.
	Timeout time.Duration

	// MaxLogBytes bounds the text captured through host.log per evaluation.
	// Default: 4096.
	MaxLogBytes int

	// MaxInputBytes rejects larger inputs before instantiating.
	// Default: one page.
	MaxInputBytes int

	// Engine selects the wazero engine. The interpreter enforces a fixed
	// call depth ceiling; the compiler grows its stack until fuel or the
	// timeout stops it.
	// Default: interpreter.
	Engine string
}

// DefaultConfig returns the default sandbox limits.
func DefaultConfig() *Config {
	return &Config{
		MemoryPages:   1,
		FuelBudget:    1_000_000,
		Timeout:       100 * time.Millisecond,
		MaxLogBytes:   4096,
		MaxInputBytes: WasmPageSize,
		Engine:        EngineInterpreter,
	}
}

// Validate checks the limits.
func (c *Config) Validate() error {
	if c.MemoryPages == 0 || c.MemoryPages > 65536 {
		return fmt.Errorf("memory pages must be between 1 and 65536, got %d", c.MemoryPages)
	}
	if c.FuelBudget <= 0 {
		return fmt.Errorf("fuel budget must be positive, got %d", c.FuelBudget)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxLogBytes < 0 {
		return fmt.Errorf("max log bytes must not be negative, got %d", c.MaxLogBytes)
	}
	if c.MaxInputBytes <= 0 {
		return fmt.Errorf("max input bytes must be positive, got %d", c.MaxInputBytes)
	}
	if c.Engine != EngineInterpreter && c.Engine != EngineCompiler {
		return fmt.Errorf("engine must be %q or %q, got %q", EngineInterpreter, EngineCompiler, c.Engine)
	}
	return nil
}

// MemoryLimitBytes is the largest linear memory an instance can have.
func (c *Config) MemoryLimitBytes() uint64 {
	return uint64(c.MemoryPages) * WasmPageSize
}
