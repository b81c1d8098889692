package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Legacy rows carry booleans as 0/1, "1", "true" or real booleans and money
// as REAL, INTEGER or TEXT. Everything is normalized here, once, on the way in.

type flagScanner struct{ dst *bool }

func flag(dst *bool) sql.Scanner { return flagScanner{dst} }

func (s flagScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.dst = false
	case bool:
		*s.dst = v
	case int64:
		*s.dst = v != 0
	case float64:
		*s.dst = v != 0
	case []byte:
		*s.dst = parseFlag(string(v))
	case string:
		*s.dst = parseFlag(v)
	default:
		return fmt.Errorf("unsupported flag encoding %T", src)
	}
	return nil
}

func parseFlag(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "true", "t", "yes", "y":
		return true
	case "", "false", "f", "no", "n":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}
	return false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

type amountScanner struct{ dst *decimal.Decimal }

func amount(dst *decimal.Decimal) sql.Scanner { return amountScanner{dst} }

func (s amountScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.dst = decimal.Zero
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			*s.dst = decimal.Zero
			return nil
		}
	case []byte:
		if strings.TrimSpace(string(v)) == "" {
			*s.dst = decimal.Zero
			return nil
		}
	}
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	*s.dst = d
	return nil
}

// amountArg converts a decimal into the REAL the schema stores.
func amountArg(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
