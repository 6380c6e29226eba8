package types

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxDivisibility is the maximum number of decimal places an amount may have.
const MaxDivisibility = 18

// ValidateAmount checks that the amount is non-negative and doesn't have more
// decimal places than allowed by the divisibility of the resource.
func ValidateAmount(amount decimal.Decimal, divisibility uint8) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount %s is negative", amount)
	}
	if divisibility > MaxDivisibility {
		return fmt.Errorf("divisibility %d exceeds maximum %d", divisibility, MaxDivisibility)
	}
	if !amount.Equal(amount.Truncate(int32(divisibility))) {
		return fmt.Errorf("amount %s has more than %d decimal places", amount, divisibility)
	}
	return nil
}

// ParseAmount parses decimal string, negative values are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, errors.New("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if err := ValidateAmount(d, MaxDivisibility); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
