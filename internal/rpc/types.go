package rpc

import (
	"encoding/json"

	"github.com/Klingon-tech/zwallet/internal/notestore"
	"github.com/Klingon-tech/zwallet/internal/wallet"
	"github.com/Klingon-tech/zwallet/pkg/tx"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeWalletError marks failures the caller can act on: insufficient
	// funds, a bad destination, an empty account.
	CodeWalletError = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// AccountParam selects an account. Omitted params mean account 0.
type AccountParam struct {
	Account uint32 `json:"account"`
}

// AddressParam is used by wallet_getAddress.
type AddressParam struct {
	Account uint32 `json:"account"`
	Change  bool   `json:"change,omitempty"`
}

// TxTypeParam is used by wallet_getTransactionType.
type TxTypeParam struct {
	Account     uint32 `json:"account"`
	Address     string `json:"address"`
	UseShielded bool   `json:"use_shielded,omitempty"`
}

// BuildParam is used by wallet_buildTransaction. Amount is in zatoshi.
type BuildParam struct {
	Account     uint32 `json:"account"`
	To          string `json:"to"`
	Amount      uint64 `json:"amount"`
	UseShielded bool   `json:"use_shielded,omitempty"`
	Memo        string `json:"memo,omitempty"`
}

// UpdateNotesParam is used by wallet_updateNotes: one scan result. A set
// Checkpoint marks a block whose tree root can anchor spends.
type UpdateNotesParam struct {
	Account     uint32            `json:"account"`
	Notes       []tx.Note         `json:"notes"`
	Spends      []notestore.Spend `json:"spends"`
	LatestBlock uint32            `json:"latest_block"`
	LatestHash  string            `json:"latest_hash"`
	Checkpoint  *uint32           `json:"checkpoint,omitempty"`
}

// ReorgParam is used by wallet_handleReorg. Everything above BlockID is
// forgotten.
type ReorgParam struct {
	Account   uint32 `json:"account"`
	BlockID   uint32 `json:"block_id"`
	BlockHash string `json:"block_hash"`
}

// ── Result types ────────────────────────────────────────────────────────

// InfoResult is returned by wallet_getInfo.
type InfoResult struct {
	Network     string `json:"network"`
	ChainID     string `json:"chain_id"`
	ActiveTasks int    `json:"active_tasks"`
}

// TasksResult is returned by wallet_listTasks.
type TasksResult struct {
	Tasks []TaskResult `json:"tasks"`
}

// TaskResult describes one in-flight wallet task.
type TaskResult struct {
	ID      uint64 `json:"id"`
	Kind    string `json:"kind"`
	Account uint32 `json:"account"`
	AgeMS   int64  `json:"age_ms"`
}

// AddressResult is returned by wallet_getAddress.
type AddressResult struct {
	Key      string `json:"key"`
	Address  string `json:"address"`
	Shielded string `json:"shielded,omitempty"` // Placeholder; dev mode only.
}

// DiscoverResult is returned by wallet_discover.
type DiscoverResult struct {
	Receive wallet.DiscoveredAddress `json:"receive"`
	Change  wallet.DiscoveredAddress `json:"change"`
}

// TxTypeResult is returned by wallet_getTransactionType.
type TxTypeResult struct {
	Type         string `json:"type"`
	AddressError string `json:"address_error"`
}

// SyncStateResult is returned by wallet_getSyncState.
type SyncStateResult struct {
	Account            uint32  `json:"account"`
	Birthday           uint32  `json:"birthday"`
	LatestScannedBlock *uint32 `json:"latest_scanned_block"`
	LatestScannedHash  string  `json:"latest_scanned_hash,omitempty"`
	Checkpoint         *uint32 `json:"checkpoint"`
}

// SyncResult is returned by the note sync methods that change state.
type SyncResult struct {
	Account            uint32  `json:"account"`
	LatestScannedBlock *uint32 `json:"latest_scanned_block"`
}
