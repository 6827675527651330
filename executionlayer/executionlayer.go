package executionlayer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client reads execution results from the execution engine RPC. The sealing
// pipeline never executes transactions itself, it only consumes the roots
// the engine computed.
type Client struct {
	client *ethclient.Client
	url    string
}

// NewClient connects to the execution engine node
func NewClient(url string) (*Client, error) {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error connecting to execution engine %s: %w", url, err)
	}
	return &Client{client: client, url: url}, nil
}

// StateRoot returns the state root the execution engine computed for the
// given batch boundary
func (c *Client) StateRoot(ctx context.Context, batchNumber uint64) (common.Hash, error) {
	header, err := c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(batchNumber))
	if err != nil {
		return common.Hash{}, fmt.Errorf("error getting header %d from %s: %w", batchNumber, c.url, err)
	}
	return header.Root, nil
}
