package rpcclient

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/Klingon-tech/zwallet/internal/wallet"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

// Chain backend methods.
const (
	MethodGetBlockCount   = "getblockcount"
	MethodGetAddressTxIDs = "getaddresstxids"
	MethodGetAddressUtxos = "getaddressutxos"
)

// ChainClient serves wallet.ChainStateClient from one RPC endpoint per
// chain id.
type ChainClient struct {
	clients map[string]*Client
}

var _ wallet.ChainStateClient = (*ChainClient)(nil)

// NewChainClient creates a chain client. clients maps chain ids to the
// endpoint serving them.
func NewChainClient(clients map[string]*Client) *ChainClient {
	m := make(map[string]*Client, len(clients))
	for id, c := range clients {
		m[id] = c
	}
	return &ChainClient{clients: m}
}

func (c *ChainClient) client(chainID string) (*Client, error) {
	cl, ok := c.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("no rpc endpoint for chain %q", chainID)
	}
	return cl, nil
}

// GetLatestBlockHeight returns the backend's current block count.
func (c *ChainClient) GetLatestBlockHeight(ctx context.Context, chainID string) (uint32, error) {
	cl, err := c.client(chainID)
	if err != nil {
		return 0, err
	}
	var height *uint32
	if err := cl.CallContext(ctx, MethodGetBlockCount, nil, &height); err != nil {
		return 0, fmt.Errorf("%s: %w", MethodGetBlockCount, err)
	}
	if height == nil {
		return 0, fmt.Errorf("%s: %w", MethodGetBlockCount, wallet.ErrEmptyResponse)
	}
	return *height, nil
}

type addressRangeParams struct {
	Addresses []string `json:"addresses"`
	Start     uint32   `json:"start"`
	End       uint32   `json:"end"`
}

// IsKnownAddress reports whether any transaction in [start, end] touches
// address.
func (c *ChainClient) IsKnownAddress(ctx context.Context, chainID, address string, start, end uint32) (bool, error) {
	cl, err := c.client(chainID)
	if err != nil {
		return false, err
	}
	// An empty range (height 0 on a fresh chain) holds no transactions.
	if start > end {
		return false, nil
	}
	var txids *[]string
	params := addressRangeParams{Addresses: []string{address}, Start: start, End: end}
	if err := cl.CallContext(ctx, MethodGetAddressTxIDs, []any{params}, &txids); err != nil {
		return false, fmt.Errorf("%s: %w", MethodGetAddressTxIDs, err)
	}
	if txids == nil {
		return false, fmt.Errorf("%s: %w", MethodGetAddressTxIDs, wallet.ErrEmptyResponse)
	}
	return len(*txids) > 0, nil
}

type addressParams struct {
	Addresses []string `json:"addresses"`
}

// utxoResult is one entry of a getaddressutxos response.
type utxoResult struct {
	Address     string `json:"address"`
	TxID        string `json:"txid"`
	OutputIndex uint32 `json:"outputIndex"`
	Script      string `json:"script"`
	Satoshis    int64  `json:"satoshis"`
	Height      uint32 `json:"height"`
}

// GetUtxoList returns the unspent outputs of address.
func (c *ChainClient) GetUtxoList(ctx context.Context, chainID, address string) ([]wallet.UTXO, error) {
	cl, err := c.client(chainID)
	if err != nil {
		return nil, err
	}
	var results *[]utxoResult
	if err := cl.CallContext(ctx, MethodGetAddressUtxos, []any{addressParams{Addresses: []string{address}}}, &results); err != nil {
		return nil, fmt.Errorf("%s: %w", MethodGetAddressUtxos, err)
	}
	if results == nil {
		return nil, fmt.Errorf("%s: %w", MethodGetAddressUtxos, wallet.ErrEmptyResponse)
	}

	utxos := make([]wallet.UTXO, 0, len(*results))
	for i, r := range *results {
		u, err := r.toUTXO()
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", MethodGetAddressUtxos, i, err)
		}
		utxos = append(utxos, u)
	}
	return utxos, nil
}

func (r utxoResult) toUTXO() (wallet.UTXO, error) {
	txid, err := types.HexToHash(r.TxID)
	if err != nil {
		return wallet.UTXO{}, fmt.Errorf("%w: txid: %v", wallet.ErrEmptyResponse, err)
	}
	script, err := hex.DecodeString(r.Script)
	if err != nil {
		return wallet.UTXO{}, fmt.Errorf("%w: script: %v", wallet.ErrEmptyResponse, err)
	}
	if r.Satoshis < 0 {
		return wallet.UTXO{}, fmt.Errorf("%w: negative value %d", wallet.ErrEmptyResponse, r.Satoshis)
	}
	return wallet.UTXO{
		Address:  r.Address,
		Outpoint: types.Outpoint{TxID: txid, Index: r.OutputIndex},
		Value:    uint64(r.Satoshis),
		Script:   script,
		Height:   r.Height,
	}, nil
}
