package common

const (
	// SEQUENCER name to identify the sequencer (state keeper) component
	SEQUENCER = "sequencer"
	// ETH_SENDER name to identify the batch aggregator + L1 sender component
	ETH_SENDER = "eth-sender" //nolint:stylecheck
	// GAS_ADJUSTER name to identify the gas price adjuster component
	GAS_ADJUSTER = "gas-adjuster" //nolint:stylecheck
)
