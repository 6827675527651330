package common

import (
	"encoding/binary"

	"github.com/Ankitjha21/zksync-era/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/keccak256"
)

// Uint64ToBytes converts a uint64 to a byte slice
func Uint64ToBytes(num uint64) []byte {
	const uint64ByteSize = 8

	bytes := make([]byte, uint64ByteSize)
	binary.BigEndian.PutUint64(bytes, num)

	return bytes
}

// BytesToUint64 converts a byte slice to a uint64
func BytesToUint64(bytes []byte) uint64 {
	return binary.BigEndian.Uint64(bytes)
}

// Uint32ToBytes converts a uint32 to a byte slice in big-endian order
func Uint32ToBytes(num uint32) []byte {
	const uint32ByteSize = 4

	key := make([]byte, uint32ByteSize)
	binary.BigEndian.PutUint32(key, num)

	return key
}

// BytesToUint32 converts a byte slice to a uint32
func BytesToUint32(bytes []byte) uint32 {
	return binary.BigEndian.Uint32(bytes)
}

// CalculateBatchCommitment computes the commitment hash of a sealed batch,
// chaining it to the commitment of the previous batch.
func CalculateBatchCommitment(
	logger *log.Logger,
	oldCommitment common.Hash,
	batchNumber uint64,
	stateRoot common.Hash,
	commitPayload []byte,
) common.Hash {
	v1 := oldCommitment.Bytes()
	v2 := Uint64ToBytes(batchNumber)
	v3 := stateRoot.Bytes()
	v4 := keccak256.Hash(commitPayload)

	if logger != nil {
		logger.Debugf("OldCommitment: %v", oldCommitment)
		logger.Debugf("BatchNumber: %d", batchNumber)
		logger.Debugf("StateRoot: %v", stateRoot)
		logger.Debugf("PayloadHash: %v", common.Bytes2Hex(v4))
	}

	return common.BytesToHash(keccak256.Hash(v1, v2, v3, v4))
}
