package rates

import (
	"errors"
	"fmt"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
)

// ValidationError means the order cannot be rated as stored: its aggregated
// dimensions are incomplete or its address is unusable even after fallback.
// Nothing was fetched or written.
type ValidationError struct {
	OrderID int64
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order %d not rateable: %s", e.OrderID, e.Reason)
}

// AdapterError wraps a single provider's failure during fan-out. One adapter
// failing never fails the fetch; the error is logged and surfaced in the
// result so callers can see which providers degraded.
type AdapterError struct {
	Provider string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// NoRatesAvailableError means every provider either failed or returned only
// ineligible quotes. The order's previous selection, if any, is left intact.
type NoRatesAvailableError struct {
	OrderID  int64
	RateType model.RateType
	// AdapterErrors carries the per-provider failures, when any occurred.
	AdapterErrors []*AdapterError
}

func (e *NoRatesAvailableError) Error() string {
	return fmt.Sprintf("no eligible rates for order %d regime %s (%d provider errors)",
		e.OrderID, e.RateType, len(e.AdapterErrors))
}

// PersistenceConflictError means a write collided with a row whose identity
// key matched but could not be updated in place, or a cheapest flip raced a
// concurrent delete. The fetch is safe to retry.
type PersistenceConflictError struct {
	OrderID int64
	Err     error
}

func (e *PersistenceConflictError) Error() string {
	return fmt.Sprintf("rate persistence conflict for order %d: %v", e.OrderID, e.Err)
}

func (e *PersistenceConflictError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a PersistenceConflictError.
func IsConflict(err error) bool {
	var c *PersistenceConflictError
	return errors.As(err, &c)
}

// IsNoRates reports whether err is a NoRatesAvailableError.
func IsNoRates(err error) bool {
	var nr *NoRatesAvailableError
	return errors.As(err, &nr)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
