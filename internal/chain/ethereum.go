package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// EthereumClock reads the block number of a live Ethereum-compatible node
// over JSON-RPC. It is the production counter source: rounds configured
// against real block heights settle on real chain time.
type EthereumClock struct {
	client *ethclient.Client
}

// DialEthereum connects to the node at rawURL and verifies it answers a
// block-number query before returning.
func DialEthereum(ctx context.Context, rawURL string) (*EthereumClock, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rawURL, err)
	}

	c := &EthereumClock{client: client}
	if _, err := c.BlockNumber(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// BlockNumber returns the node's latest block height.
func (c *EthereumClock) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	return n, nil
}

// Close tears down the underlying RPC connection.
func (c *EthereumClock) Close() {
	c.client.Close()
}
