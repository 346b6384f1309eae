package rpc

import (
	"encoding/json"

	"localex/native/offer"
)

type offerCreateParams struct {
	Owner        string `json:"owner"`
	Denom        string `json:"denom"`
	FiatCurrency string `json:"fiatCurrency"`
	Type         string `json:"type"`
	Rate         string `json:"rate"`
	MinAmount    string `json:"minAmount"`
	MaxAmount    string `json:"maxAmount"`
}

func (s *Server) handleOfferCreate(params []json.RawMessage) (interface{}, error) {
	var p offerCreateParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	owner, err := parseAddr("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	typ, err := offer.ParseType(p.Type)
	if err != nil {
		return nil, err
	}
	rate, err := parseAmount("rate", p.Rate)
	if err != nil {
		return nil, err
	}
	min, err := parseAmount("minAmount", p.MinAmount)
	if err != nil {
		return nil, err
	}
	max, err := parseAmount("maxAmount", p.MaxAmount)
	if err != nil {
		return nil, err
	}
	created, err := s.offers.Create(owner, p.Denom, p.FiatCurrency, typ, rate, min, max)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveOfferCreated()
	return newOfferResult(created), nil
}

type offerUpdateParams struct {
	Caller    string `json:"caller"`
	OfferID   uint64 `json:"offerId"`
	Rate      string `json:"rate"`
	MinAmount string `json:"minAmount"`
	MaxAmount string `json:"maxAmount"`
}

func (s *Server) handleOfferUpdate(params []json.RawMessage) (interface{}, error) {
	var p offerUpdateParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	rate, err := parseAmount("rate", p.Rate)
	if err != nil {
		return nil, err
	}
	min, err := parseAmount("minAmount", p.MinAmount)
	if err != nil {
		return nil, err
	}
	max, err := parseAmount("maxAmount", p.MaxAmount)
	if err != nil {
		return nil, err
	}
	updated, err := s.offers.Update(caller, p.OfferID, rate, min, max)
	if err != nil {
		return nil, err
	}
	return newOfferResult(updated), nil
}

type offerUpdateStateParams struct {
	Caller  string `json:"caller"`
	OfferID uint64 `json:"offerId"`
	State   string `json:"state"`
}

func (s *Server) handleOfferUpdateState(params []json.RawMessage) (interface{}, error) {
	var p offerUpdateStateParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddr("caller", p.Caller)
	if err != nil {
		return nil, err
	}
	target, err := offer.ParseState(p.State)
	if err != nil {
		return nil, err
	}
	updated, err := s.offers.UpdateState(caller, p.OfferID, target)
	if err != nil {
		return nil, err
	}
	return newOfferResult(updated), nil
}

type offerGetParams struct {
	OfferID uint64 `json:"offerId"`
}

func (s *Server) handleOfferGet(params []json.RawMessage) (interface{}, error) {
	var p offerGetParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	o, err := s.offers.Get(p.OfferID)
	if err != nil {
		return nil, err
	}
	return newOfferResult(o), nil
}

type offerListParams struct {
	Owner string `json:"owner"`
}

func (s *Server) handleOfferListByOwner(params []json.RawMessage) (interface{}, error) {
	var p offerListParams
	if err := singleParam(params, &p); err != nil {
		return nil, err
	}
	owner, err := parseAddr("owner", p.Owner)
	if err != nil {
		return nil, err
	}
	listed, err := s.offers.ListByOwner(owner)
	if err != nil {
		return nil, err
	}
	results := make([]offerResult, 0, len(listed))
	for _, o := range listed {
		results = append(results, newOfferResult(o))
	}
	return results, nil
}
