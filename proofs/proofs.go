package proofs

import (
	"context"
	"errors"
	"time"
)

// ErrProofUnavailable means the proof for the requested batch does not exist
// yet. The aggregator defers bundle formation on it; it is not a failure.
var ErrProofUnavailable = errors.New("proof not available yet")

// SendingMode selects whether proofs gate the formation of Prove and Execute
// bundles. The Commit path never depends on proofs.
type SendingMode string

const (
	// OnlyRealProofs requires a verified proof before an Execute bundle is formed
	OnlyRealProofs SendingMode = "OnlyRealProofs"
	// SkipEveryProof bypasses proof requirements entirely. Used on networks
	// where proving is disabled
	SkipEveryProof SendingMode = "SkipEveryProof"
	// OnlySampledProofs requires proofs only for batches picked by the
	// sampling rate; the remaining batches proceed as under SkipEveryProof
	OnlySampledProofs SendingMode = "OnlySampledProofs"
)

// LoadingMode selects where proofs are loaded from
type LoadingMode string

const (
	// FriProofFromGcs loads serialized FRI proofs from an HTTP object store
	FriProofFromGcs LoadingMode = "FriProofFromGcs"
	// ProverNetwork loads proofs from a prover network endpoint
	ProverNetwork LoadingMode = "ProverNetwork"
)

// Proof is a validity proof for a single batch, opaque to the pipeline
type Proof struct {
	BatchNumber uint64
	Payload     []byte
	FetchedAt   time.Time
}

// Source loads proofs by batch number. Implementations return
// ErrProofUnavailable while the proof does not exist yet.
type Source interface {
	ProofFor(ctx context.Context, batchNumber uint64) (*Proof, error)
}
