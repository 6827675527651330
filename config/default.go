package config

// DefaultVars are the deployment dependent values. They don't have a sensible
// default because they depend on the environment, but every one of them can
// be overridden from a user config file or from the environment
// (ZKSYNC_<VAR>).
const DefaultVars = `
# Layer 1 (Ethereum) RPC provider URL
L1URL = "http://localhost:8545"

# Layer 2 execution engine RPC URL
L2URL = "http://localhost:3050"

# L1ChainID is the chain id of the L1 network
L1ChainID = 1

# PathRWData is the directory where the node stores its databases
PathRWData = "/tmp/zksync-era"

# DiamondProxyAddr is the address of the main rollup contract on L1
DiamondProxyAddr = "0x0000000000000000000000000000000000000000"
# ValidatorTimelockAddr is the L1 contract the commit, prove and execute
# transactions are sent to
ValidatorTimelockAddr = "0x0000000000000000000000000000000000000000"

# SenderAddress is the account that signs the L1 transactions
SenderAddress = "0x0000000000000000000000000000000000000000"
# SenderKeystorePath is the path to the sender private key
SenderKeystorePath = "/app/keystore/ethsender.keystore"
# SenderKeystorePassword is the password to the sender private key
SenderKeystorePassword = "testonly"

# ProofStoreURL is the base URL proofs are fetched from
ProofStoreURL = "http://localhost:3052"
`

// DefaultValues is the default configuration of every component
const DefaultValues = `
[Log]
Environment = "development" # "production" or "development"
Level = "info"
Outputs = ["stderr"]

[Etherman]
URL = "{{L1URL}}"
L1ChainID = {{L1ChainID}}
DiamondProxyAddr = "{{DiamondProxyAddr}}"
ValidatorTimelockAddr = "{{ValidatorTimelockAddr}}"

[Sequencer]
# TransactionSlots is the hard cap of transactions per batch
TransactionSlots = 1500
MiniblockCommitDeadline = "2s"
BlockCommitDeadline = "1m"
MaxGasPerBatch = 5000000
# MaxSingleTxGas rejects a transaction on arrival regardless of the
# remaining batch capacity
MaxSingleTxGas = 4000000
MaxEthParamsSize = 120000
MaxCircuitsPerBatch = 25000
MaxPubdataPerBatch = 100000
# Close thresholds seal the batch after admitting the transaction that
# crosses them. They must not exceed the matching reject thresholds.
CloseBlockAtGasPercentage = 0.95
CloseBlockAtEthParamsPercentage = 0.95
CloseBlockAtGeometryPercentage = 0.95
RejectTxAtGasPercentage = 0.97
RejectTxAtEthParamsPercentage = 0.97
RejectTxAtGeometryPercentage = 0.97
MinimalL2GasPrice = 100000000
DBPath = "{{PathRWData}}/state.sqlite"
ExecutionLayerURL = "{{L2URL}}"

[GasAdjuster]
# DefaultPriorityFeePerGas is the tip floor, in wei
DefaultPriorityFeePerGas = 1000000000
PollPeriod = "12s"
# MaxFeeSamples is the size of the base fee observation window
MaxFeeSamples = 20
MaxScaleFactor = 10.0

[EthSender]
SenderAddress = "{{SenderAddress}}"
PrivateKey = {Path = "{{SenderKeystorePath}}", Password = "{{SenderKeystorePassword}}"}
MaxAggregatedTxGas = 4000000
MaxEthTxDataSize = 120000
MaxAggregatedBlocksToExecute = 45
GasOffset = 80000
TxPollPeriod = "12s"
AggregateTxPollPeriod = "15s"
# ResendInterval is how long a tx may stay unmined before it is replaced
# with a higher fee
ResendInterval = "3m"
MaxResendAttempts = 10
MaxPendingTx = 10
# ProofSendingMode can be "OnlyRealProofs", "SkipEveryProof" or "OnlySampledProofs"
ProofSendingMode = "SkipEveryProof"
# ProofLoadingMode can be "FriProofFromGcs" or "ProverNetwork"
ProofLoadingMode = "FriProofFromGcs"
# ProofSampleRate requires a real proof for one in every N batches under
# OnlySampledProofs
ProofSampleRate = 10
ProofWaitWarnInterval = "1h"

	[EthSender.Proofs]
	StoreURL = "{{ProofStoreURL}}"
	RequestTimeout = "30s"
	MaxRetries = 3
`
