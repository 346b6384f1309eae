package rpc

import (
	"encoding/json"
	"sort"
	"strings"

	"localex/crypto"
)

type arbRegisterParams struct {
	Caller       string `json:"caller"`
	FiatCurrency string `json:"fiatCurrency"`
	Arbitrator   string `json:"arbitrator"`
}

func (s *Server) handleArbRegister(params []json.RawMessage) (interface{}, error) {
	var p arbRegisterParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	arbitrator, err := parseAddr("arbitrator", p.Arbitrator)
	if err != nil {
		return nil, err
	}
	if err := s.trades.RegisterArbitrator(caller, p.FiatCurrency, arbitrator); err != nil {
		return nil, err
	}
	return map[string]bool{"registered": true}, nil
}

type arbRemoveParams struct {
	Caller       string `json:"caller"`
	FiatCurrency string `json:"fiatCurrency"`
}

func (s *Server) handleArbRemove(params []json.RawMessage) (interface{}, error) {
	var p arbRemoveParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	if err := s.trades.RemoveArbitrator(caller, p.FiatCurrency); err != nil {
		return nil, err
	}
	return map[string]bool{"removed": true}, nil
}

type arbEntry struct {
	FiatCurrency string `json:"fiatCurrency"`
	Arbitrator   string `json:"arbitrator"`
}

func (s *Server) handleArbList(params []json.RawMessage) (interface{}, error) {
	registry, err := s.trades.Arbitrators()
	if err != nil {
		return nil, err
	}
	entries := make([]arbEntry, 0, len(registry))
	for fiat, addr := range registry {
		entries = append(entries, arbEntry{
			FiatCurrency: fiat,
			Arbitrator:   crypto.MustAddress(addr).String(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FiatCurrency < entries[j].FiatCurrency })
	return entries, nil
}

type incentivesClaimParams struct {
	Caller string `json:"caller"`
	Period uint64 `json:"period"`
}

func (s *Server) handleIncentivesClaim(params []json.RawMessage) (interface{}, error) {
	var p incentivesClaimParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	reward, err := s.incentives.Claim(caller, p.Period)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveRewardClaimed()
	return map[string]string{"reward": reward.String()}, nil
}

type incentivesPeriodParams struct {
	Period uint64 `json:"period"`
}

type incentivesPeriodResult struct {
	Period      uint64            `json:"period"`
	TotalVolume string            `json:"totalVolume"`
	Volumes     map[string]string `json:"volumes"`
}

func (s *Server) handleIncentivesPeriod(params []json.RawMessage) (interface{}, error) {
	var p incentivesPeriodParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	period, ok, err := s.incentives.Period(p.Period)
	if err != nil {
		return nil, err
	}
	result := incentivesPeriodResult{Period: p.Period, TotalVolume: "0", Volumes: map[string]string{}}
	if ok {
		result.TotalVolume = period.TotalVolume.String()
		for addr, volume := range period.Volumes {
			result.Volumes[addr] = volume.String()
		}
	}
	return result, nil
}

type balanceParams struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
}

type balanceResult struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
	Balance string `json:"balance"`
}

func (s *Server) handleGetBalance(params []json.RawMessage) (interface{}, error) {
	var p balanceParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	addr, err := parseAddr("address", p.Address)
	if err != nil {
		return nil, err
	}
	denom := strings.ToUpper(strings.TrimSpace(p.Denom))
	balance, err := s.state.Balance(addr, denom)
	if err != nil {
		return nil, err
	}
	return balanceResult{Address: p.Address, Denom: denom, Balance: balance.String()}, nil
}
