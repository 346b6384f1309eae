package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"localex/core/state"
	nativecommon "localex/native/common"
	"localex/native/incentives"
	"localex/native/offer"
	"localex/native/trade"
	"localex/native/validation"
	"localex/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeNotFound       = -32021
	codeInvalidState   = -32022
	codeForbidden      = -32023
	codeExpired        = -32024
	codeModulePaused   = -32025
)

// Server exposes the venue engines over JSON-RPC 2.0. Mutating commands are
// serialized behind a single mutex so each invocation observes and produces a
// consistent state snapshot.
type Server struct {
	mu sync.Mutex

	offers     *offer.Engine
	trades     *trade.Engine
	incentives *incentives.Engine
	state      *state.Manager
	logger     *slog.Logger
	metrics    *metrics.VenueMetrics
	authToken  string
}

// NewServer wires the engines into an RPC server. The bearer token for
// mutating commands is read from LOCALEX_RPC_TOKEN; when unset, commands are
// rejected.
func NewServer(offers *offer.Engine, trades *trade.Engine, inc *incentives.Engine, st *state.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		offers:     offers,
		trades:     trades,
		incentives: inc,
		state:      st,
		logger:     logger,
		metrics:    metrics.Venue(),
		authToken:  strings.TrimSpace(os.Getenv("LOCALEX_RPC_TOKEN")),
	}
}

// Router returns the HTTP handler serving the RPC endpoint and metrics.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves the router on addr and blocks.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) requireAuth(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	if mutatingMethods[req.Method] {
		if !s.requireAuth(r) {
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized", nil)
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found: "+req.Method, nil)
		return
	}
	result, err := handler(req.Params)
	if err != nil {
		code, message, data := mapEngineError(err)
		s.logger.Warn("rpc call failed", "method", req.Method, "err", err)
		writeError(w, http.StatusOK, req.ID, code, message, data)
		return
	}
	writeResult(w, req.ID, result)
}

var mutatingMethods = map[string]bool{
	"offer_create":              true,
	"offer_update":              true,
	"offer_updateState":         true,
	"trade_open":                true,
	"trade_accept":              true,
	"trade_fundEscrow":          true,
	"trade_attestFiatDeposited": true,
	"trade_release":             true,
	"trade_cancel":              true,
	"trade_requestRefund":       true,
	"trade_dispute":             true,
	"trade_resolve":             true,
	"arb_register":              true,
	"arb_remove":                true,
	"incentives_claim":          true,
}

type rpcHandler func(params []json.RawMessage) (interface{}, error)

func (s *Server) methods() map[string]rpcHandler {
	return map[string]rpcHandler{
		"offer_create":              s.handleOfferCreate,
		"offer_update":              s.handleOfferUpdate,
		"offer_updateState":         s.handleOfferUpdateState,
		"offer_get":                 s.handleOfferGet,
		"offer_listByOwner":         s.handleOfferListByOwner,
		"trade_open":                s.handleTradeOpen,
		"trade_accept":              s.handleTradeAccept,
		"trade_fundEscrow":          s.handleTradeFundEscrow,
		"trade_attestFiatDeposited": s.handleTradeAttestFiat,
		"trade_release":             s.handleTradeRelease,
		"trade_cancel":              s.handleTradeCancel,
		"trade_requestRefund":       s.handleTradeRequestRefund,
		"trade_dispute":             s.handleTradeDispute,
		"trade_resolve":             s.handleTradeResolve,
		"trade_get":                 s.handleTradeGet,
		"trade_listByParticipant":   s.handleTradeListByParticipant,
		"arb_register":              s.handleArbRegister,
		"arb_remove":                s.handleArbRemove,
		"arb_list":                  s.handleArbList,
		"incentives_claim":          s.handleIncentivesClaim,
		"incentives_period":         s.handleIncentivesPeriod,
		"lcx_getBalance":            s.handleGetBalance,
	}
}

// mapEngineError translates structured engine errors into RPC error codes,
// carrying the typed error in the Data field.
func mapEngineError(err error) (int, string, interface{}) {
	var (
		offerNotFound *offer.OfferNotFoundError
		tradeNotFound *trade.TradeNotFoundError
		unauthorized  *nativecommon.UnauthorizedError
		invalidSender *trade.InvalidSenderError
		expired       *trade.TradeExpiredError
		notExpired    *trade.RefundErrorNotExpired
		tradeState    *trade.InvalidTradeStateError
		tradeChange   *trade.InvalidTradeStateChangeError
		fundMismatch  *trade.FundEscrowError
		premature     *trade.PrematureDisputeRequestError
		offerChange   *offer.InvalidOfferStateChangeError
		offerAmount   *offer.InvalidOfferAmountError
		offerMax      *offer.OfferMaxAboveTradingLimitError
		outOfRange    *validation.ValueOutOfRangeError
		minMax        *validation.InvalidMinMaxError
		invalidParam  *validation.InvalidParameterError
	)
	switch {
	case errors.As(err, &offerNotFound):
		return codeNotFound, err.Error(), offerNotFound
	case errors.As(err, &tradeNotFound):
		return codeNotFound, err.Error(), tradeNotFound
	case errors.As(err, &unauthorized):
		return codeForbidden, err.Error(), nil
	case errors.As(err, &invalidSender):
		return codeForbidden, err.Error(), nil
	case errors.Is(err, nativecommon.ErrModulePaused):
		return codeModulePaused, err.Error(), nil
	case errors.As(err, &expired):
		return codeExpired, err.Error(), expired
	case errors.As(err, &notExpired):
		return codeExpired, err.Error(), notExpired
	case errors.As(err, &tradeState):
		return codeInvalidState, err.Error(), tradeState
	case errors.As(err, &tradeChange):
		return codeInvalidState, err.Error(), tradeChange
	case errors.As(err, &fundMismatch):
		return codeInvalidState, err.Error(), fundMismatch
	case errors.As(err, &premature):
		return codeInvalidState, err.Error(), premature
	case errors.As(err, &offerChange):
		return codeInvalidState, err.Error(), offerChange
	case errors.Is(err, offer.ErrOfferNotActive), errors.Is(err, offer.ErrOfferArchived):
		return codeInvalidState, err.Error(), nil
	case errors.Is(err, trade.ErrNoArbitrator):
		return codeInvalidState, err.Error(), nil
	case errors.Is(err, incentives.ErrDistributionNotStarted),
		errors.Is(err, incentives.ErrClaimInvalidPeriod),
		errors.Is(err, incentives.ErrAlreadyClaimed),
		errors.Is(err, incentives.ErrNothingToClaim):
		return codeInvalidState, err.Error(), nil
	case errors.As(err, &offerAmount):
		return codeInvalidParams, err.Error(), offerAmount
	case errors.As(err, &offerMax):
		return codeInvalidParams, err.Error(), offerMax
	case errors.As(err, &outOfRange):
		return codeInvalidParams, err.Error(), outOfRange
	case errors.As(err, &minMax):
		return codeInvalidParams, err.Error(), minMax
	case errors.As(err, &invalidParam):
		return codeInvalidParams, err.Error(), invalidParam
	case errors.Is(err, validation.ErrInvalidPriceForDenom):
		return codeInvalidParams, err.Error(), nil
	case errors.Is(err, state.ErrInsufficientBalance):
		return codeInvalidState, err.Error(), nil
	default:
		return codeServerError, err.Error(), nil
	}
}

func singleParam(params []json.RawMessage, out interface{}) error {
	if len(params) != 1 {
		return &validation.InvalidParameterError{Parameter: "params", Message: "expected a single params object"}
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return &validation.InvalidParameterError{Parameter: "params", Message: err.Error()}
	}
	return nil
}
