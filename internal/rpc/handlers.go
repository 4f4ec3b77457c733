package rpc

import (
	"context"
	"errors"

	"github.com/Klingon-tech/zwallet/internal/notestore"
	"github.com/Klingon-tech/zwallet/internal/wallet"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

// walletError maps an engine error to a JSON-RPC error.
func (s *Server) walletError(method string, err error) *Error {
	if wallet.IsRecoverable(err) || errors.Is(err, wallet.ErrShieldedDisabled) {
		return &Error{Code: CodeWalletError, Message: err.Error()}
	}
	s.logger.Warn().Err(err).Str("method", method).Msg("Wallet request failed")
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

func (s *Server) handleGetInfo(_ *Request) (any, *Error) {
	net := s.wallet.Network()
	return &InfoResult{
		Network:     net.String(),
		ChainID:     net.ChainID(),
		ActiveTasks: len(s.wallet.Tasks()),
	}, nil
}

func (s *Server) handleListTasks(_ *Request) (any, *Error) {
	tasks := s.wallet.Tasks()
	out := &TasksResult{Tasks: make([]TaskResult, 0, len(tasks))}
	for _, t := range tasks {
		out.Tasks = append(out.Tasks, TaskResult{
			ID:      t.ID,
			Kind:    t.Kind,
			Account: t.Account,
			AgeMS:   t.Age.Milliseconds(),
		})
	}
	return out, nil
}

// handleGetAddress returns the first address on the branch with no chain
// history, not the keyring's possibly stale record.
func (s *Server) handleGetAddress(ctx context.Context, req *Request) (any, *Error) {
	var p AddressParam
	if rpcErr := parseOptionalParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}

	next, err := s.wallet.DiscoverNextUnusedAddress(ctx, p.Account, p.Change, nil)
	if err != nil {
		return nil, s.walletError(req.Method, err)
	}
	out := &AddressResult{Key: next.Key.String(), Address: next.Address.String()}
	if !s.devOrchard {
		return out, nil
	}

	raw, ok, err := s.keys.GetOrchardRawAddress(p.Account, p.Change)
	if err != nil {
		return nil, s.walletError(req.Method, err)
	}
	if ok {
		ua, err := types.NewOrchardUnifiedAddress(s.wallet.Network(), raw).Encode()
		if err != nil {
			return nil, s.walletError(req.Method, err)
		}
		out.Shielded = ua
	}
	return out, nil
}

func (s *Server) handleGetBalance(ctx context.Context, req *Request) (any, *Error) {
	var p AccountParam
	if rpcErr := parseOptionalParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	bal, err := s.wallet.ResolveBalance(ctx, p.Account)
	if err != nil {
		return nil, s.walletError(req.Method, err)
	}
	return bal, nil
}

func (s *Server) handleDiscover(ctx context.Context, req *Request) (any, *Error) {
	var p AccountParam
	if rpcErr := parseOptionalParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	receive, change, err := s.wallet.RunDiscovery(ctx, p.Account)
	if err != nil {
		return nil, s.walletError(req.Method, err)
	}
	return &DiscoverResult{Receive: receive, Change: change}, nil
}

func (s *Server) handleGetTransactionType(req *Request) (any, *Error) {
	var p TxTypeParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	kind, addrErr, err := s.wallet.GetTransactionType(p.Account, p.UseShielded, p.Address)
	if err != nil {
		return nil, s.walletError(req.Method, err)
	}
	return &TxTypeResult{Type: kind.String(), AddressError: addrErr.String()}, nil
}

func (s *Server) handleBuildTransaction(ctx context.Context, req *Request) (any, *Error) {
	var p BuildParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.To == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "to is required"}
	}
	if p.Amount == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "amount must be positive"}
	}

	var memo []byte
	if p.Memo != "" {
		memo = []byte(p.Memo)
	}
	built, err := s.wallet.BuildPayment(ctx, p.Account, p.To, p.Amount, p.UseShielded, memo)
	if err != nil {
		return nil, s.walletError(req.Method, err)
	}
	return built, nil
}

func (s *Server) handleShieldAll(ctx context.Context, req *Request) (any, *Error) {
	var p AccountParam
	if rpcErr := parseOptionalParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	built, err := s.wallet.ShieldAllFunds(ctx, p.Account)
	if err != nil {
		return nil, s.walletError(req.Method, err)
	}
	return built, nil
}

// noteStoreError maps a note store error. Unknown accounts and rejected
// scan results are the caller's fault.
func (s *Server) noteStoreError(method string, err error) *Error {
	if errors.Is(err, notestore.ErrAccountNotRegistered) || errors.Is(err, notestore.ErrConsistency) {
		return &Error{Code: CodeWalletError, Message: err.Error()}
	}
	s.logger.Warn().Err(err).Str("method", method).Msg("Note store request failed")
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

func (s *Server) requireNotes() *Error {
	if s.notes == nil {
		return &Error{Code: CodeWalletError, Message: wallet.ErrShieldedDisabled.Error()}
	}
	return nil
}

func (s *Server) handleGetSyncState(req *Request) (any, *Error) {
	if rpcErr := s.requireNotes(); rpcErr != nil {
		return nil, rpcErr
	}
	var p AccountParam
	if rpcErr := parseOptionalParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	meta, err := s.notes.GetAccountMeta(p.Account)
	if err != nil {
		return nil, s.noteStoreError(req.Method, err)
	}
	out := &SyncStateResult{
		Account:            p.Account,
		Birthday:           meta.Birthday,
		LatestScannedBlock: meta.LatestScannedBlock,
		LatestScannedHash:  meta.LatestScannedHash,
	}
	cp, ok, err := s.notes.MaxCheckpoint(p.Account)
	if err != nil {
		return nil, s.noteStoreError(req.Method, err)
	}
	if ok {
		out.Checkpoint = &cp
	}
	return out, nil
}

func (s *Server) handleUpdateNotes(req *Request) (any, *Error) {
	if rpcErr := s.requireNotes(); rpcErr != nil {
		return nil, rpcErr
	}
	var p UpdateNotesParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.LatestBlock == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "latest_block is required"}
	}
	if p.Checkpoint != nil && *p.Checkpoint > p.LatestBlock {
		return nil, &Error{Code: CodeInvalidParams, Message: "checkpoint is past latest_block"}
	}

	if err := s.notes.UpdateNotes(p.Account, p.Notes, p.Spends, p.LatestBlock, p.LatestHash); err != nil {
		return nil, s.noteStoreError(req.Method, err)
	}
	if p.Checkpoint != nil {
		if err := s.notes.AddCheckpoint(p.Account, *p.Checkpoint); err != nil {
			return nil, s.noteStoreError(req.Method, err)
		}
	}
	return &SyncResult{Account: p.Account, LatestScannedBlock: &p.LatestBlock}, nil
}

func (s *Server) handleReorg(req *Request) (any, *Error) {
	if rpcErr := s.requireNotes(); rpcErr != nil {
		return nil, rpcErr
	}
	var p ReorgParam
	if rpcErr := parseParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.notes.HandleChainReorg(p.Account, p.BlockID, p.BlockHash); err != nil {
		return nil, s.noteStoreError(req.Method, err)
	}
	s.logger.Info().Uint32("account", p.Account).Uint32("block", p.BlockID).Msg("Note store rewound")
	return &SyncResult{Account: p.Account, LatestScannedBlock: &p.BlockID}, nil
}

func (s *Server) handleResetSyncState(req *Request) (any, *Error) {
	if rpcErr := s.requireNotes(); rpcErr != nil {
		return nil, rpcErr
	}
	var p AccountParam
	if rpcErr := parseOptionalParams(req, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.notes.ResetAccountSyncState(p.Account); err != nil {
		return nil, s.noteStoreError(req.Method, err)
	}
	s.logger.Info().Uint32("account", p.Account).Msg("Note store sync state reset")
	return &SyncResult{Account: p.Account}, nil
}
