package etherman

import (
	"github.com/ethereum/go-ethereum/common"
)

// Config represents the configuration of the etherman
type Config struct {
	// URL is the URL of the Ethereum node for L1
	URL string `mapstructure:"URL"`
	// L1ChainID is the chain ID of the L1 network
	L1ChainID uint64 `mapstructure:"L1ChainID"`
	// DiamondProxyAddr is the address of the L1 rollup contract
	DiamondProxyAddr common.Address `mapstructure:"DiamondProxyAddr"`
	// ValidatorTimelockAddr is the address commit, prove and execute
	// transactions are sent to
	ValidatorTimelockAddr common.Address `mapstructure:"ValidatorTimelockAddr"`
}
