package proofs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Ankitjha21/zksync-era/log"
)

// ObjectStoreSource fetches serialized FRI proofs over HTTP from a
// GCS-style bucket, one object per batch. Fetched proofs are cached in
// memory: the aggregator may ask for the same batch on every poll until its
// bundle is formed.
type ObjectStoreSource struct {
	cfg    Config
	logger *log.Logger
	client *http.Client

	mu    sync.Mutex
	cache map[uint64]*Proof
}

// NewObjectStoreSource creates an ObjectStoreSource
func NewObjectStoreSource(cfg Config, logger *log.Logger) *ObjectStoreSource {
	return &ObjectStoreSource{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.RequestTimeout.Duration},
		cache:  map[uint64]*Proof{},
	}
}

// ProofFor implements the Source interface
func (s *ObjectStoreSource) ProofFor(ctx context.Context, batchNumber uint64) (*Proof, error) {
	s.mu.Lock()
	if proof, ok := s.cache[batchNumber]; ok {
		s.mu.Unlock()
		return proof, nil
	}
	s.mu.Unlock()

	url := fmt.Sprintf("%s/proofs_fri_%d.bin", s.cfg.StoreURL, batchNumber)
	payload, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	proof := &Proof{
		BatchNumber: batchNumber,
		Payload:     payload,
		FetchedAt:   time.Now(),
	}
	s.mu.Lock()
	s.cache[batchNumber] = proof
	s.mu.Unlock()

	s.logger.Debugf("fetched proof for batch %d (%d bytes)", batchNumber, len(payload))

	return proof, nil
}

// Release drops the cached proof of a batch once its bundle is confirmed
func (s *ObjectStoreSource) Release(batchNumber uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, batchNumber)
}

func (s *ObjectStoreSource) fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	attempts := s.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return nil, err
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			payload, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				lastErr = err
				continue
			}
			return payload, nil
		case http.StatusNotFound:
			resp.Body.Close()
			return nil, ErrProofUnavailable
		default:
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
		}
	}

	return nil, lastErr
}

// ProverNetworkSource fetches proofs from a prover network endpoint. The
// wire format differs from the object store only in the path layout.
type ProverNetworkSource struct {
	*ObjectStoreSource
}

// NewProverNetworkSource creates a ProverNetworkSource
func NewProverNetworkSource(cfg Config, logger *log.Logger) *ProverNetworkSource {
	return &ProverNetworkSource{NewObjectStoreSource(cfg, logger)}
}

// ProofFor implements the Source interface
func (s *ProverNetworkSource) ProofFor(ctx context.Context, batchNumber uint64) (*Proof, error) {
	s.mu.Lock()
	if proof, ok := s.cache[batchNumber]; ok {
		s.mu.Unlock()
		return proof, nil
	}
	s.mu.Unlock()

	url := fmt.Sprintf("%s/proof_generation_data/%d", s.cfg.StoreURL, batchNumber)
	payload, err := s.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	proof := &Proof{
		BatchNumber: batchNumber,
		Payload:     payload,
		FetchedAt:   time.Now(),
	}
	s.mu.Lock()
	s.cache[batchNumber] = proof
	s.mu.Unlock()

	return proof, nil
}

// StaticSource serves proofs from a fixed in-memory set. Used in tests and
// on networks where proving is bypassed.
type StaticSource struct {
	mu     sync.Mutex
	proofs map[uint64][]byte
}

// NewStaticSource creates an empty StaticSource
func NewStaticSource() *StaticSource {
	return &StaticSource{proofs: map[uint64][]byte{}}
}

// Add registers a proof payload for a batch
func (s *StaticSource) Add(batchNumber uint64, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proofs[batchNumber] = payload
}

// ProofFor implements the Source interface
func (s *StaticSource) ProofFor(_ context.Context, batchNumber uint64) (*Proof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, ok := s.proofs[batchNumber]
	if !ok {
		return nil, ErrProofUnavailable
	}

	return &Proof{BatchNumber: batchNumber, Payload: payload, FetchedAt: time.Now()}, nil
}
