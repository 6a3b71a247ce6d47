package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a currency-agnostic monetary value kept in minor units (hundredths).
// It maps to a NUMERIC(12,2) column and is rendered as a quoted decimal string.
type Amount int64

var ErrInvalidAmount = errors.New("invalid amount")

// AmountFromScaled converts an integer amount whose currency has exponent
// decimal places (0 for JPY, 2 for USD, 3 for KWD). Values that would lose
// precision at two places are rejected.
func AmountFromScaled(v int64, exponent int) (Amount, error) {
	switch exponent {
	case 0:
		return Amount(v * 100), nil
	case 1:
		return Amount(v * 10), nil
	case 2:
		return Amount(v), nil
	case 3:
		if v%10 != 0 {
			return 0, fmt.Errorf("%w: %d has more than two decimal places", ErrInvalidAmount, v)
		}
		return Amount(v / 10), nil
	default:
		return 0, fmt.Errorf("%w: unsupported currency exponent %d", ErrInvalidAmount, exponent)
	}
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseAmount parses a decimal string with at most two fractional digits.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		if len(frac) == 1 {
			frac += "0"
		}
	} else {
		frac = "00"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	v := units*100 + cents
	if neg {
		v = -v
	}
	return Amount(v), nil
}

func (a Amount) MinorUnits() int64 {
	return int64(a)
}

func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*a = 0
		return nil
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Scan implements sql.Scanner. lib/pq returns NUMERIC columns as []byte.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = 0
		return nil
	case []byte:
		parsed, err := ParseAmount(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case string:
		parsed, err := ParseAmount(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case int64:
		*a = Amount(v * 100)
		return nil
	case float64:
		parsed, err := ParseAmount(strconv.FormatFloat(v, 'f', 2, 64))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidAmount, src)
	}
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}
