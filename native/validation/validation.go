// Package validation holds the pure predicate checks shared by the offer
// registry and trade engine. The checks never mutate state; engines apply them
// as guards before the first write of an invocation.
package validation

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrInvalidPriceForDenom rejects non-positive prices.
var ErrInvalidPriceForDenom = errors.New("invalid price for denom: must be greater than zero")

// ValueOutOfRangeError reports a value outside an inclusive range.
type ValueOutOfRangeError struct {
	Value      *big.Int
	RangeStart *big.Int
	RangeEnd   *big.Int
}

func (e *ValueOutOfRangeError) Error() string {
	return fmt.Sprintf("value %s out of range [%s, %s]", e.Value, e.RangeStart, e.RangeEnd)
}

// InvalidMinMaxError reports a lower bound above its upper bound.
type InvalidMinMaxError struct {
	Min *big.Int
	Max *big.Int
}

func (e *InvalidMinMaxError) Error() string {
	return fmt.Sprintf("min amount %s must not exceed max amount %s", e.Min, e.Max)
}

// InvalidParameterError reports a structurally invalid input parameter.
type InvalidParameterError struct {
	Parameter string
	Message   string
}

func (e *InvalidParameterError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("the parameter %q is invalid", e.Parameter)
	}
	return fmt.Sprintf("the parameter %q is invalid: %s", e.Parameter, e.Message)
}

// CheckRange succeeds iff rangeStart <= value <= rangeEnd.
func CheckRange(value, rangeStart, rangeEnd *big.Int) error {
	if value == nil || rangeStart == nil || rangeEnd == nil {
		return &InvalidParameterError{Parameter: "range", Message: "nil amount"}
	}
	if value.Cmp(rangeStart) < 0 || value.Cmp(rangeEnd) > 0 {
		return &ValueOutOfRangeError{
			Value:      new(big.Int).Set(value),
			RangeStart: new(big.Int).Set(rangeStart),
			RangeEnd:   new(big.Int).Set(rangeEnd),
		}
	}
	return nil
}

// CheckMinMax fails iff min > max.
func CheckMinMax(min, max *big.Int) error {
	if min == nil || max == nil {
		return &InvalidParameterError{Parameter: "min/max", Message: "nil amount"}
	}
	if min.Cmp(max) > 0 {
		return &InvalidMinMaxError{Min: new(big.Int).Set(min), Max: new(big.Int).Set(max)}
	}
	return nil
}

// CheckPositivePrice fails iff price <= 0.
func CheckPositivePrice(price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPriceForDenom
	}
	return nil
}
