package sequencer

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrSealingHalted is returned by every admission attempt after a sealed
// batch could not be persisted, until the operator resolves the failure and
// calls Resume
var ErrSealingHalted = errors.New("sealing halted, batch state could not be persisted")

// Dimension is a metered batch resource
type Dimension string

const (
	// DimensionGas is the batch gas budget
	DimensionGas Dimension = "gas"
	// DimensionEthParams is the L1 commit calldata budget
	DimensionEthParams Dimension = "eth params"
	// DimensionGeometry is the proving circuit budget
	DimensionGeometry Dimension = "geometry"
	// DimensionPubdata is the data availability budget
	DimensionPubdata Dimension = "pubdata"
)

// TxRejectedError is returned when admitting a transaction would push a
// dimension above its reject threshold or the transaction alone exceeds the
// single-transaction gas ceiling. The open batch is unaffected and the
// submitter may retry elsewhere.
type TxRejectedError struct {
	Hash      common.Hash
	Dimension Dimension
}

func (e *TxRejectedError) Error() string {
	return fmt.Sprintf("tx %s rejected: %s limit exceeded", e.Hash, e.Dimension)
}
