package ethsender

import (
	"fmt"

	"github.com/Ankitjha21/zksync-era/config/types"
	"github.com/Ankitjha21/zksync-era/proofs"
	"github.com/ethereum/go-ethereum/common"
)

// Config represents the configuration of the batch aggregator and L1 sender
type Config struct {
	// SenderAddress defines which private key is used to sign the L1 txs
	SenderAddress common.Address `mapstructure:"SenderAddress"`
	// PrivateKey defines the key store file holding the private key used
	// to sign the L1 txs
	PrivateKey types.KeystoreFileConfig `mapstructure:"PrivateKey"`

	// MaxAggregatedTxGas is the cumulative estimated gas ceiling of a bundle
	MaxAggregatedTxGas uint64 `mapstructure:"MaxAggregatedTxGas"`
	// MaxEthTxDataSize is the cumulative payload byte ceiling of a bundle
	MaxEthTxDataSize uint64 `mapstructure:"MaxEthTxDataSize"`
	// MaxAggregatedBlocksToExecute is the batch count ceiling of a bundle
	MaxAggregatedBlocksToExecute uint64 `mapstructure:"MaxAggregatedBlocksToExecute"`

	// GasOffset is the amount of gas to be added to the gas estimation in order
	// to provide an amount that is higher than the estimated one. This is used
	// to avoid the TX getting reverted in case something has changed in the network
	// state after the estimation which can cause the TX to require more gas to be
	// executed.
	//
	// ex:
	// gas estimation: 1000
	// gas offset: 100
	// final gas: 1100
	GasOffset uint64 `mapstructure:"GasOffset"`

	// TxPollPeriod is the cadence of the inclusion checks of in-flight txs
	TxPollPeriod types.Duration `mapstructure:"TxPollPeriod"`
	// AggregateTxPollPeriod is the cadence of bundle formation and submission
	AggregateTxPollPeriod types.Duration `mapstructure:"AggregateTxPollPeriod"`
	// ResendInterval is the time without inclusion after which an in-flight
	// tx is replaced with a higher fee
	ResendInterval types.Duration `mapstructure:"ResendInterval"`
	// MaxResendAttempts bounds the fee-bumped resubmissions of one tx
	MaxResendAttempts uint64 `mapstructure:"MaxResendAttempts"`
	// MaxPendingTx is the maximum number of in-flight L1 txs
	MaxPendingTx uint64 `mapstructure:"MaxPendingTx"`

	// ProofSendingMode selects whether proofs gate Prove/Execute bundles
	ProofSendingMode proofs.SendingMode `jsonschema:"enum=OnlyRealProofs, enum=SkipEveryProof, enum=OnlySampledProofs" mapstructure:"ProofSendingMode"` //nolint:lll
	// ProofLoadingMode selects where proofs are loaded from
	ProofLoadingMode proofs.LoadingMode `jsonschema:"enum=FriProofFromGcs, enum=ProverNetwork" mapstructure:"ProofLoadingMode"`
	// ProofSampleRate requires a real proof for one in every N batches under
	// OnlySampledProofs
	ProofSampleRate uint64 `mapstructure:"ProofSampleRate"`
	// ProofWaitWarnInterval is how long a bundle may wait on a missing proof
	// before a warning is logged
	ProofWaitWarnInterval types.Duration `mapstructure:"ProofWaitWarnInterval"`
	// Proofs is the proof source configuration
	Proofs proofs.Config `mapstructure:"Proofs"`
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.MaxAggregatedTxGas == 0 || c.MaxEthTxDataSize == 0 || c.MaxAggregatedBlocksToExecute == 0 {
		return fmt.Errorf("aggregation ceilings must be greater than 0")
	}
	if c.TxPollPeriod.Duration <= 0 || c.AggregateTxPollPeriod.Duration <= 0 || c.ResendInterval.Duration <= 0 {
		return fmt.Errorf("poll periods must be greater than 0")
	}
	if c.MaxResendAttempts == 0 {
		return fmt.Errorf("MaxResendAttempts must be greater than 0")
	}
	if c.MaxPendingTx == 0 {
		return fmt.Errorf("MaxPendingTx must be greater than 0")
	}

	switch c.ProofSendingMode {
	case proofs.OnlyRealProofs, proofs.SkipEveryProof:
	case proofs.OnlySampledProofs:
		if c.ProofSampleRate == 0 {
			return fmt.Errorf("ProofSampleRate must be greater than 0 under OnlySampledProofs")
		}
	default:
		return fmt.Errorf("unknown proof sending mode %q", c.ProofSendingMode)
	}

	return nil
}
