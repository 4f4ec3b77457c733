// Package rpc implements the wallet daemon's JSON-RPC 2.0 API server.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/zwallet/config"
	klog "github.com/Klingon-tech/zwallet/internal/log"
	"github.com/Klingon-tech/zwallet/internal/notestore"
	"github.com/Klingon-tech/zwallet/internal/wallet"
	"github.com/Klingon-tech/zwallet/pkg/tx"
	"github.com/Klingon-tech/zwallet/pkg/types"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Wallet is the engine surface the server exposes. *wallet.Service
// implements it.
type Wallet interface {
	Network() types.Network
	Tasks() []wallet.TaskInfo
	ResolveBalance(ctx context.Context, account uint32) (*wallet.Balance, error)
	RunDiscovery(ctx context.Context, account uint32) (receive, change wallet.DiscoveredAddress, err error)
	BuildPayment(ctx context.Context, account uint32, to string, amount uint64, useShielded bool, memo []byte) (*tx.Transaction, error)
	ShieldAllFunds(ctx context.Context, account uint32) (*tx.Transaction, error)
	GetTransactionType(account uint32, useShielded bool, address string) (wallet.TxType, wallet.AddressError, error)
	DiscoverNextUnusedAddress(ctx context.Context, account uint32, change bool, start *types.KeyID) (wallet.DiscoveredAddress, error)
}

var _ Wallet = (*wallet.Service)(nil)

// NoteSync is the note store surface a scanner drives through the API.
// *notestore.Store implements it.
type NoteSync interface {
	GetAccountMeta(account uint32) (*notestore.AccountMeta, error)
	MaxCheckpoint(account uint32) (uint32, bool, error)
	UpdateNotes(account uint32, found []tx.Note, spends []notestore.Spend, latestBlock uint32, latestHash string) error
	AddCheckpoint(account, blockID uint32) error
	HandleChainReorg(account, blockID uint32, blockHash string) error
	ResetAccountSyncState(account uint32) error
}

var _ NoteSync = (*notestore.Store)(nil)

// Server is the JSON-RPC 2.0 HTTP server.
type Server struct {
	addr        string
	wallet      Wallet
	keys        wallet.Keyring
	notes       NoteSync // nil disables the sync methods.
	devOrchard  bool
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
	corsOrigins []string     // Empty = no CORS headers.
}

// New creates a new RPC server. The srvCfg parameter controls IP filtering
// and CORS. A zero-value ServerConfig allows all IPs and disables CORS.
func New(addr string, w Wallet, keys wallet.Keyring, srvCfg ...config.ServerConfig) *Server {
	s := &Server{
		addr:   addr,
		wallet: w,
		keys:   keys,
		logger: klog.WithComponent("rpc"),
	}

	if len(srvCfg) > 0 {
		s.allowedNets = parseAllowedIPs(srvCfg[0].AllowedIPs)
		s.corsOrigins = srvCfg[0].CORSOrigins
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)

	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// Builds wait on several chain round trips.
		WriteTimeout: 5 * time.Minute,
	}

	return s
}

// SetNoteStore enables the note sync methods.
func (s *Server) SetNoteStore(notes NoteSync) {
	s.notes = notes
}

// SetDevOrchardAddresses makes wallet_getAddress report the keyring's
// placeholder Orchard address. Off by default: those addresses are not
// derived from real Orchard keys.
func (s *Server) SetDevOrchardAddresses(on bool) {
	s.devOrchard = on
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		// Try as a single IP (add /32 or /128).
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Wallet RPC listening")
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server. In-flight requests are cancelled,
// which drops their wallet tasks.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// handleRequest is the main HTTP handler for JSON-RPC requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	// IP filtering.
	if len(s.allowedNets) > 0 {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ip := net.ParseIP(host)
		if ip == nil || !s.isIPAllowed(ip) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	// CORS headers.
	s.setCORSHeaders(w, r)

	// Handle CORS preflight.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, nil, CodeInvalidRequest, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}

	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
		return
	}

	result, rpcErr := s.dispatch(r.Context(), &req)
	if rpcErr != nil {
		writeJSON(w, Response{
			JSONRPC: "2.0",
			Error:   rpcErr,
			ID:      req.ID,
		})
		return
	}

	writeJSON(w, Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	})
}

// dispatch routes a request to the appropriate handler. ctx ends when the
// client goes away.
func (s *Server) dispatch(ctx context.Context, req *Request) (any, *Error) {
	switch req.Method {
	case "wallet_getInfo":
		return s.handleGetInfo(req)
	case "wallet_listTasks":
		return s.handleListTasks(req)
	case "wallet_getAddress":
		return s.handleGetAddress(ctx, req)
	case "wallet_getBalance":
		return s.handleGetBalance(ctx, req)
	case "wallet_discover":
		return s.handleDiscover(ctx, req)
	case "wallet_getTransactionType":
		return s.handleGetTransactionType(req)
	case "wallet_buildTransaction":
		return s.handleBuildTransaction(ctx, req)
	case "wallet_shieldAll":
		return s.handleShieldAll(ctx, req)
	case "wallet_getSyncState":
		return s.handleGetSyncState(req)
	case "wallet_updateNotes":
		return s.handleUpdateNotes(req)
	case "wallet_handleReorg":
		return s.handleReorg(req)
	case "wallet_resetSyncState":
		return s.handleResetSyncState(req)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

// writeJSON writes a JSON-RPC response.
func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON-RPC error response.
func writeError(w http.ResponseWriter, id any, code int, message string) {
	writeJSON(w, Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	})
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := false
	for _, o := range s.corsOrigins {
		if o == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			allowed = true
			break
		}
		if o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			allowed = true
			break
		}
	}

	if allowed {
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
}

// parseParams unmarshals the request params into the given target.
func parseParams(req *Request, target any) *Error {
	if !hasParams(req) {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}
	return parseOptionalParams(req, target)
}

// parseOptionalParams is parseParams for methods whose params all have
// defaults; absent params leave target untouched.
func parseOptionalParams(req *Request, target any) *Error {
	if !hasParams(req) {
		return nil
	}
	if err := json.Unmarshal(req.Params, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func hasParams(req *Request) bool {
	p := bytes.TrimSpace(req.Params)
	return len(p) > 0 && !bytes.Equal(p, []byte("null"))
}
