package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloudx-io/bidledger/core"
	"github.com/cloudx-io/bidledger/host"
	"github.com/cloudx-io/bidledger/ledgerapi"
)

func (s *Server) dispatch(ctx context.Context, raw []byte) any {
	var baseReq struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &baseReq); err != nil {
		requestsTotal.WithLabelValues("unknown", "malformed").Inc()
		return errorResponse("Failed to decode request: %v", err)
	}

	s.logger.Debug("received request", zap.String("type", baseReq.Type))

	switch baseReq.Type {
	case ledgerapi.TypePing:
		requestsTotal.WithLabelValues(baseReq.Type, "ok").Inc()
		return &ledgerapi.PingResponse{
			Type:      "pong",
			Message:   "ledger is healthy",
			Timestamp: s.now().Unix(),
		}

	case ledgerapi.TypeKeyRequest:
		return s.handleKeyRequest()

	case ledgerapi.TypeBid, ledgerapi.TypeClose, ledgerapi.TypeRetract:
		var req ledgerapi.ExecuteRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			requestsTotal.WithLabelValues(baseReq.Type, "malformed").Inc()
			return errorResponse("Failed to decode %s request: %v", baseReq.Type, err)
		}
		return s.handleExecute(ctx, req)

	case ledgerapi.TypeQuery:
		var req ledgerapi.QueryRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			requestsTotal.WithLabelValues(baseReq.Type, "malformed").Inc()
			return errorResponse("Failed to decode query request: %v", err)
		}
		return s.handleQuery(ctx, req)

	default:
		requestsTotal.WithLabelValues("unknown", "unknown_type").Inc()
		return errorResponse("Unknown request type: %s", baseReq.Type)
	}
}

func (s *Server) handleKeyRequest() any {
	attester, err := s.attester()
	if err != nil {
		s.logger.Warn("attestation unavailable, returning bare key", zap.Error(err))
		attester = nil
	}

	resp, err := HandleKeyRequest(attester, s.keyManager, s.cfg.Contract)
	if err != nil {
		requestsTotal.WithLabelValues(ledgerapi.TypeKeyRequest, "error").Inc()
		s.logger.Error("key request failed", zap.Error(err))
		return errorResponse("Key request failed: %v", err)
	}
	requestsTotal.WithLabelValues(ledgerapi.TypeKeyRequest, "ok").Inc()
	return resp
}

func (s *Server) handleExecute(ctx context.Context, req ledgerapi.ExecuteRequest) *ledgerapi.ExecuteResponse {
	start := time.Now()
	cmd := host.Command{Kind: host.CommandKind(req.Type)}
	if req.Type == ledgerapi.TypeRetract {
		cmd.Receiver = req.Receiver
	}

	res, err := s.host.Execute(ctx, req.Sender, cmd, req.Funds)
	commandDuration.WithLabelValues(req.Type).Observe(time.Since(start).Seconds())

	resp := &ledgerapi.ExecuteResponse{Type: "execute_response"}
	if err != nil {
		resp.Message = err.Error()
		resp.Code, resp.Threshold = describeError(err)
		resp.ProcessingTime = time.Since(start).Milliseconds()
		requestsTotal.WithLabelValues(req.Type, resultLabel(resp.Code)).Inc()
		return resp
	}

	resp.Success = true
	resp.InvocationID = res.InvocationID
	resp.Transfers = res.Response.Transfers
	resp.Attributes = res.Response.Attributes

	if res.Settlement != nil {
		receipt, err := IssueReceipt(s.keyManager, s.host.Contract(), res.Settlement, s.now())
		if err != nil {
			// The close is already committed; report it without a receipt.
			s.logger.Error("failed to issue settlement receipt",
				zap.String("invocation_id", res.InvocationID), zap.Error(err))
			resp.Message = fmt.Sprintf("settlement receipt unavailable: %v", err)
		} else {
			receiptsIssued.Inc()
			resp.Receipt = receipt
		}
	}

	resp.ProcessingTime = time.Since(start).Milliseconds()
	requestsTotal.WithLabelValues(req.Type, "ok").Inc()
	return resp
}

func (s *Server) handleQuery(ctx context.Context, req ledgerapi.QueryRequest) *ledgerapi.QueryResponse {
	resp := &ledgerapi.QueryResponse{Type: "query_response", Query: req.Query}

	result, err := s.runQuery(ctx, req)
	if err == nil {
		resp.Result, err = json.Marshal(result)
	}
	if err != nil {
		resp.Message = err.Error()
		resp.Code, _ = describeError(err)
		requestsTotal.WithLabelValues(ledgerapi.TypeQuery, resultLabel(resp.Code)).Inc()
		return resp
	}

	resp.Success = true
	requestsTotal.WithLabelValues(ledgerapi.TypeQuery, "ok").Inc()
	return resp
}

func (s *Server) runQuery(ctx context.Context, req ledgerapi.QueryRequest) (any, error) {
	switch req.Query {
	case ledgerapi.QueryTotalBid:
		total, err := s.host.TotalBid(ctx, req.Address)
		return ledgerapi.TotalBidResult{Total: total}, err
	case ledgerapi.QueryHighestOfBid:
		bid, err := s.host.HighestOfBid(ctx)
		return ledgerapi.HighestOfBidResult{Bid: bid}, err
	case ledgerapi.QueryWinner:
		winner, err := s.host.Winner(ctx)
		return ledgerapi.WinnerResult{Winner: winner}, err
	case ledgerapi.QueryConfig:
		return s.host.Config(ctx)
	case ledgerapi.QueryStandings:
		standings, err := s.host.Standings(ctx)
		return ledgerapi.StandingsResult{Standings: standings}, err
	case ledgerapi.QueryBalance:
		addr := req.Address
		if addr == "" {
			addr = s.host.Contract()
		}
		denom := req.Denom
		if denom == "" {
			denom = s.cfg.Denom
		}
		balance, err := s.host.Balance(ctx, addr, denom)
		return ledgerapi.BalanceResult{Address: addr, Balance: balance}, err
	default:
		return nil, fmt.Errorf("unknown query %q", req.Query)
	}
}

// describeError extracts the ledger error code and, for low bids, the
// amount that must be exceeded.
func describeError(err error) (core.Code, *core.Coin) {
	var ledgerErr *core.Error
	if errors.As(err, &ledgerErr) {
		return ledgerErr.Code, ledgerErr.Threshold
	}
	if errors.Is(err, host.ErrInsufficientFunds) {
		return "INSUFFICIENT_FUNDS", nil
	}
	if errors.Is(err, host.ErrUnexpectedFunds) {
		return "UNEXPECTED_FUNDS", nil
	}
	return "", nil
}

func resultLabel(code core.Code) string {
	if code == "" {
		return "error"
	}
	return string(code)
}

func errorResponse(format string, args ...any) *ledgerapi.ErrorResponse {
	return &ledgerapi.ErrorResponse{
		Type:    "error",
		Message: fmt.Sprintf(format, args...),
	}
}
