package proofs

import (
	"fmt"

	"github.com/Ankitjha21/zksync-era/config/types"
	"github.com/Ankitjha21/zksync-era/log"
)

// Config represents the configuration of the proof sources
type Config struct {
	// StoreURL is the base URL of the object store or prover network the
	// proofs are fetched from
	StoreURL string `mapstructure:"StoreURL"`
	// RequestTimeout bounds a single proof fetch
	RequestTimeout types.Duration `mapstructure:"RequestTimeout"`
	// MaxRetries is the number of fetch attempts before giving up on a request
	MaxRetries int `mapstructure:"MaxRetries"`
}

// NewSource builds the proof source selected by the loading mode
func NewSource(cfg Config, mode LoadingMode, logger *log.Logger) (Source, error) {
	switch mode {
	case FriProofFromGcs:
		return NewObjectStoreSource(cfg, logger), nil
	case ProverNetwork:
		return NewProverNetworkSource(cfg, logger), nil
	}

	return nil, fmt.Errorf("unknown proof loading mode %q", mode)
}
