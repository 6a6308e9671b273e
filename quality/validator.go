// Package quality computes per-record validity and per-batch
// multi-dimensional quality metrics, and gates batches before load.
package quality

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/goliatone/go-reconcile/core"
)

const (
	maxPrice            = 1_000_000.0
	stockSlackFactor    = 1.10
	minProductNameRunes = 3
)

// RecordCheck is the per-record validation verdict. Format violations
// make a record invalid; business-rule violations and suspicion flags are
// recorded but do not hard-reject on their own.
type RecordCheck struct {
	Valid              bool
	FormatViolations   []string
	BusinessViolations []string
	SuspicionFlags     []string
}

func (c RecordCheck) ConsistencyOK() bool {
	return len(c.BusinessViolations) == 0
}

// CheckRecord applies field-format, range, and business-rule checks to a
// normalized record.
func CheckRecord(record core.NormalizedRecord) RecordCheck {
	check := RecordCheck{Valid: true}

	if strings.TrimSpace(record.CanonicalID) == "" {
		check.fail("canonical id is missing")
	}
	if strings.TrimSpace(record.WarehouseKey) == "" {
		check.fail("warehouse key is missing")
	}
	if record.AvailableQty < 0 {
		check.fail("available quantity is negative")
	}
	if record.ReservedQty < 0 {
		check.fail("reserved quantity is negative")
	}
	if record.TotalQty < 0 {
		check.fail("total quantity is negative")
	}
	if record.Price <= 0 || record.Price > maxPrice {
		check.fail(fmt.Sprintf("price %v outside (0, %v]", record.Price, maxPrice))
	}

	if float64(record.AvailableQty+record.ReservedQty) > float64(record.TotalQty)*stockSlackFactor {
		check.BusinessViolations = append(check.BusinessViolations,
			"available + reserved exceeds total with 10% slack")
	}

	if record.AvailableQty == 0 && record.ReservedQty > 0 {
		check.SuspicionFlags = append(check.SuspicionFlags, "zero available with reserved stock")
	}
	name := strings.TrimSpace(record.ProductName)
	if len([]rune(name)) < minProductNameRunes {
		check.SuspicionFlags = append(check.SuspicionFlags, "product name too short")
	} else if isPurelyNumeric(name) {
		check.SuspicionFlags = append(check.SuspicionFlags, "product name is purely numeric")
	}

	return check
}

func (c *RecordCheck) fail(reason string) {
	c.Valid = false
	c.FormatViolations = append(c.FormatViolations, reason)
}

func isPurelyNumeric(name string) bool {
	for _, r := range name {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
