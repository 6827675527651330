package gasprice

import (
	"fmt"

	"github.com/Ankitjha21/zksync-era/config/types"
)

// Config represents the configuration of the gas price adjuster
type Config struct {
	// DefaultPriorityFeePerGas is the priority fee baseline, in wei. The
	// adjuster never returns less than it
	DefaultPriorityFeePerGas uint64 `mapstructure:"DefaultPriorityFeePerGas"`
	// PollPeriod is the base fee sampling cadence
	PollPeriod types.Duration `mapstructure:"PollPeriod"`
	// MaxFeeSamples is the size of the base fee history window
	MaxFeeSamples int `mapstructure:"MaxFeeSamples"`
	// MaxScaleFactor bounds how far congestion may scale the priority fee
	// above the default
	MaxScaleFactor float64 `mapstructure:"MaxScaleFactor"`
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.DefaultPriorityFeePerGas == 0 {
		return fmt.Errorf("DefaultPriorityFeePerGas must be greater than 0")
	}
	if c.PollPeriod.Duration <= 0 {
		return fmt.Errorf("PollPeriod must be greater than 0")
	}
	if c.MaxFeeSamples <= 0 {
		return fmt.Errorf("MaxFeeSamples must be greater than 0")
	}
	if c.MaxScaleFactor < 1 {
		return fmt.Errorf("MaxScaleFactor must be at least 1")
	}

	return nil
}
