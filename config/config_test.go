package config

import (
	"testing"
	"time"

	"github.com/Ankitjha21/zksync-era/proofs"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultConfig(t *testing.T) {
	cfg, err := LoadFiles(nil, "")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.NoError(t, cfg.Validate())

	require.Equal(t, uint64(1500), cfg.Sequencer.TransactionSlots)
	require.Equal(t, time.Minute, cfg.Sequencer.BlockCommitDeadline.Duration)
	require.Equal(t, 0.95, cfg.Sequencer.CloseBlockAtGasPercentage)
	require.Equal(t, proofs.SkipEveryProof, cfg.EthSender.ProofSendingMode)
}

func TestConfigOverride(t *testing.T) {
	override := FileData{
		Name: "override.toml",
		Content: `
[Sequencer]
TransactionSlots = 100
`,
	}
	cfg, err := LoadFiles([]FileData{override}, "")
	require.NoError(t, err)
	require.Equal(t, uint64(100), cfg.Sequencer.TransactionSlots)
	// untouched fields keep their defaults
	require.Equal(t, uint64(5_000_000), cfg.Sequencer.MaxGasPerBatch)
}

func TestSaveConfigToString(t *testing.T) {
	cfg, err := LoadFiles(nil, "")
	require.NoError(t, err)

	rendered, err := SaveConfigToString(*cfg)
	require.NoError(t, err)
	require.Contains(t, rendered, "TransactionSlots")
}
