package sequencer

import (
	"fmt"

	"github.com/Ankitjha21/zksync-era/config/types"
)

// Config represents the configuration of the sealing policy engine
type Config struct {
	// TransactionSlots is the queue capacity that triggers a batch seal
	TransactionSlots uint64 `mapstructure:"TransactionSlots"`
	// MiniblockCommitDeadline is the max time a miniblock stays open
	MiniblockCommitDeadline types.Duration `mapstructure:"MiniblockCommitDeadline"`
	// BlockCommitDeadline is the max time a batch stays open
	BlockCommitDeadline types.Duration `mapstructure:"BlockCommitDeadline"`

	// MaxGasPerBatch is the absolute gas ceiling of a batch
	MaxGasPerBatch uint64 `mapstructure:"MaxGasPerBatch"`
	// MaxSingleTxGas is the gas ceiling of a single transaction. A transaction
	// above it is rejected regardless of the current batch occupancy
	MaxSingleTxGas uint64 `mapstructure:"MaxSingleTxGas"`
	// MaxEthParamsSize is the absolute ceiling of the batch contribution to
	// the L1 commit calldata, in bytes
	MaxEthParamsSize uint64 `mapstructure:"MaxEthParamsSize"`
	// MaxCircuitsPerBatch is the absolute proving geometry ceiling of a batch
	MaxCircuitsPerBatch uint64 `mapstructure:"MaxCircuitsPerBatch"`
	// MaxPubdataPerBatch is the absolute pubdata ceiling of a batch, in bytes
	MaxPubdataPerBatch uint64 `mapstructure:"MaxPubdataPerBatch"`

	// CloseBlockAtGasPercentage is the fraction of MaxGasPerBatch that seals the batch
	CloseBlockAtGasPercentage float64 `mapstructure:"CloseBlockAtGasPercentage"`
	// CloseBlockAtEthParamsPercentage is the fraction of MaxEthParamsSize that seals the batch
	CloseBlockAtEthParamsPercentage float64 `mapstructure:"CloseBlockAtEthParamsPercentage"`
	// CloseBlockAtGeometryPercentage is the fraction of MaxCircuitsPerBatch that seals the batch
	CloseBlockAtGeometryPercentage float64 `mapstructure:"CloseBlockAtGeometryPercentage"`

	// RejectTxAtGasPercentage is the fraction of MaxGasPerBatch a transaction may never push past
	RejectTxAtGasPercentage float64 `mapstructure:"RejectTxAtGasPercentage"`
	// RejectTxAtEthParamsPercentage is the fraction of MaxEthParamsSize a transaction may never push past
	RejectTxAtEthParamsPercentage float64 `mapstructure:"RejectTxAtEthParamsPercentage"`
	// RejectTxAtGeometryPercentage is the fraction of MaxCircuitsPerBatch a transaction may never push past
	RejectTxAtGeometryPercentage float64 `mapstructure:"RejectTxAtGeometryPercentage"`

	// MinimalL2GasPrice is the fee floor for L2 transactions, in wei
	MinimalL2GasPrice uint64 `mapstructure:"MinimalL2GasPrice"`

	// DBPath is the path of the sqlite DB holding the sealed batches
	DBPath string `mapstructure:"DBPath"`

	// ExecutionLayerURL is the RPC URL of the execution engine that computes
	// the state roots
	ExecutionLayerURL string `mapstructure:"ExecutionLayerURL"`
}

// Validate checks the configuration. The close (soft) fraction of every
// dimension must not exceed its reject (hard) fraction, so the engine always
// seals before any transaction could be forced into a hard rejection.
func (c Config) Validate() error {
	if c.TransactionSlots == 0 {
		return fmt.Errorf("TransactionSlots must be greater than 0")
	}
	if c.MiniblockCommitDeadline.Duration <= 0 || c.BlockCommitDeadline.Duration <= 0 {
		return fmt.Errorf("commit deadlines must be greater than 0")
	}
	if c.MaxGasPerBatch == 0 || c.MaxSingleTxGas == 0 ||
		c.MaxEthParamsSize == 0 || c.MaxCircuitsPerBatch == 0 || c.MaxPubdataPerBatch == 0 {
		return fmt.Errorf("resource ceilings must be greater than 0")
	}

	fractions := []struct {
		name          string
		close, reject float64
	}{
		{"gas", c.CloseBlockAtGasPercentage, c.RejectTxAtGasPercentage},
		{"eth params", c.CloseBlockAtEthParamsPercentage, c.RejectTxAtEthParamsPercentage},
		{"geometry", c.CloseBlockAtGeometryPercentage, c.RejectTxAtGeometryPercentage},
	}
	for _, f := range fractions {
		if f.close <= 0 || f.close > 1 {
			return fmt.Errorf("%s close percentage %f out of range (0, 1]", f.name, f.close)
		}
		if f.reject <= 0 || f.reject > 1 {
			return fmt.Errorf("%s reject percentage %f out of range (0, 1]", f.name, f.reject)
		}
		if f.close > f.reject {
			return fmt.Errorf("%s close percentage %f above reject percentage %f", f.name, f.close, f.reject)
		}
	}

	return nil
}
