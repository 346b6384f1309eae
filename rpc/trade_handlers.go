package rpc

import (
	"encoding/json"
	"math/big"

	"localex/native/trade"
)

// updateEscrowGauge refreshes the locked-escrow metric from the vault balance.
func (s *Server) updateEscrowGauge(denom string) {
	vault := trade.VaultAddress(denom)
	balance, err := s.state.Balance(vault, denom)
	if err != nil {
		return
	}
	locked, _ := new(big.Float).SetInt(balance).Float64()
	s.metrics.SetEscrowLocked(denom, locked)
}

type tradeOpenParams struct {
	OfferID uint64 `json:"offerId"`
	Taker   string `json:"taker"`
	Amount  string `json:"amount"`
}

func (s *Server) handleTradeOpen(params []json.RawMessage) (interface{}, error) {
	var p tradeOpenParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	taker, err := parseAddr("taker", p.Taker)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	opened, err := s.trades.OpenTrade(p.OfferID, taker, amount)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTradeOpened()
	return newTradeResult(opened), nil
}

type tradeCallParams struct {
	TradeID string `json:"tradeId"`
	Caller  string `json:"caller"`
}

func (p tradeCallParams) decode() ([32]byte, [20]byte, error) {
	id, err := parseTradeID(p.TradeID)
	if err != nil {
		return [32]byte{}, [20]byte{}, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return [32]byte{}, [20]byte{}, err
	}
	return id, caller, nil
}

func (s *Server) handleTradeAccept(params []json.RawMessage) (interface{}, error) {
	var p tradeCallParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	id, caller, err := p.decode()
	if err != nil {
		return nil, err
	}
	accepted, err := s.trades.AcceptTrade(id, caller)
	if err != nil {
		return nil, err
	}
	return newTradeResult(accepted), nil
}

type tradeFundParams struct {
	TradeID string `json:"tradeId"`
	Caller  string `json:"caller"`
	Amount  string `json:"amount"`
}

func (s *Server) handleTradeFundEscrow(params []json.RawMessage) (interface{}, error) {
	var p tradeFundParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	id, err := parseTradeID(p.TradeID)
	if err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return nil, err
	}
	funded, err := s.trades.FundEscrow(id, caller, amount)
	if err != nil {
		return nil, err
	}
	s.updateEscrowGauge(funded.Denom)
	return newTradeResult(funded), nil
}

func (s *Server) handleTradeAttestFiat(params []json.RawMessage) (interface{}, error) {
	var p tradeCallParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	id, caller, err := p.decode()
	if err != nil {
		return nil, err
	}
	attested, err := s.trades.AttestFiatDeposited(id, caller)
	if err != nil {
		return nil, err
	}
	return newTradeResult(attested), nil
}

func (s *Server) handleTradeRelease(params []json.RawMessage) (interface{}, error) {
	var p tradeCallParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	id, caller, err := p.decode()
	if err != nil {
		return nil, err
	}
	released, err := s.trades.ReleaseEscrow(id, caller)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTradeSettled("released")
	s.updateEscrowGauge(released.Denom)
	return newTradeResult(released), nil
}

func (s *Server) handleTradeCancel(params []json.RawMessage) (interface{}, error) {
	var p tradeCallParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	id, caller, err := p.decode()
	if err != nil {
		return nil, err
	}
	canceled, err := s.trades.CancelTrade(id, caller)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTradeSettled("canceled")
	s.updateEscrowGauge(canceled.Denom)
	return newTradeResult(canceled), nil
}

func (s *Server) handleTradeRequestRefund(params []json.RawMessage) (interface{}, error) {
	var p tradeCallParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	id, caller, err := p.decode()
	if err != nil {
		return nil, err
	}
	refunded, err := s.trades.RequestRefund(id, caller)
	if err != nil {
		return nil, err
	}
	if refunded.Status == trade.StatusRequestExpired {
		s.metrics.ObserveTradeExpired()
	} else {
		s.metrics.ObserveTradeSettled("refunded")
	}
	s.updateEscrowGauge(refunded.Denom)
	return newTradeResult(refunded), nil
}

func (s *Server) handleTradeDispute(params []json.RawMessage) (interface{}, error) {
	var p tradeCallParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	id, caller, err := p.decode()
	if err != nil {
		return nil, err
	}
	disputed, err := s.trades.OpenDispute(id, caller)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTradeDisputed()
	return newTradeResult(disputed), nil
}

type tradeResolveParams struct {
	TradeID  string `json:"tradeId"`
	Caller   string `json:"caller"`
	Decision string `json:"decision"`
}

func (s *Server) handleTradeResolve(params []json.RawMessage) (interface{}, error) {
	var p tradeResolveParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	id, err := parseTradeID(p.TradeID)
	if err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	decision, err := trade.ParseDecision(p.Decision)
	if err != nil {
		return nil, err
	}
	resolved, err := s.trades.ResolveDispute(id, caller, decision)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTradeSettled("arbitrated")
	s.updateEscrowGauge(resolved.Denom)
	return newTradeResult(resolved), nil
}

type tradeGetParams struct {
	TradeID string `json:"tradeId"`
}

func (s *Server) handleTradeGet(params []json.RawMessage) (interface{}, error) {
	var p tradeGetParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	id, err := parseTradeID(p.TradeID)
	if err != nil {
		return nil, err
	}
	t, err := s.trades.Get(id)
	if err != nil {
		return nil, err
	}
	return newTradeResult(t), nil
}

type tradeListParams struct {
	Participant string `json:"participant"`
}

func (s *Server) handleTradeListByParticipant(params []json.RawMessage) (interface{}, error) {
	var p tradeListParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	participant, err := parseAddr("participant", p.Participant)
	if err != nil {
		return nil, err
	}
	listed, err := s.trades.ListByParticipant(participant)
	if err != nil {
		return nil, err
	}
	results := make([]tradeResult, 0, len(listed))
	for _, t := range listed {
		results = append(results, newTradeResult(t))
	}
	return results, nil
}
