// Package deposit computes upfront deposits and remaining balances.
package deposit

import (
	"fmt"

	"github.com/shopspring/decimal"
	domainErrors "github.com/wekeepgrowing/paper-n-print-billing/internal/domain/errors"
)

// Kind selects how a deposit value is interpreted
type Kind string

const (
	KindPercent Kind = "percent"
	KindFixed   Kind = "fixed"
)

// CurrencyPlaces is the precision money is rounded to.
const CurrencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Spec is a deposit term: a percentage of the total or a fixed amount.
type Spec struct {
	Kind  Kind            `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// Breakdown splits a total into the deposit and what is left to pay.
// Deposit + Remaining always equals the rounded total.
type Breakdown struct {
	Total     decimal.Decimal `json:"total"`
	Deposit   decimal.Decimal `json:"deposit"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Validate reports whether the spec can be applied to any total.
func (s Spec) Validate() error {
	if s.Value.IsNegative() {
		return fmt.Errorf("%w: value %s is negative", domainErrors.ErrInvalidDeposit, s.Value)
	}
	switch s.Kind {
	case KindPercent:
		if s.Value.GreaterThan(hundred) {
			return fmt.Errorf("%w: percent %s exceeds 100", domainErrors.ErrInvalidDeposit, s.Value)
		}
	case KindFixed:
	default:
		return fmt.Errorf("%w: unknown kind %q", domainErrors.ErrInvalidDeposit, s.Kind)
	}
	return nil
}

// Compute returns the deposit and remaining balance for total under spec.
// Percent deposits are rounded half away from zero to cents, fixed deposits are
// capped at the total and the remaining balance never drops below zero.
func Compute(total decimal.Decimal, spec Spec) (Breakdown, error) {
	if total.IsNegative() {
		return Breakdown{}, fmt.Errorf("%w: total %s is negative", domainErrors.ErrInvalidDeposit, total)
	}
	if err := spec.Validate(); err != nil {
		return Breakdown{}, err
	}

	total = total.Round(CurrencyPlaces)

	var amount decimal.Decimal
	switch spec.Kind {
	case KindPercent:
		amount = total.Mul(spec.Value).Div(hundred).Round(CurrencyPlaces)
	case KindFixed:
		amount = decimal.Min(spec.Value.Round(CurrencyPlaces), total)
	}

	remaining := total.Sub(amount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return Breakdown{Total: total, Deposit: amount, Remaining: remaining}, nil
}
