package httpadapter

import (
	"context"
	"errors"
)

// Checks is a readiness checker built from independent probes. The service
// is ready only when every probe passes.
type Checks []func(ctx context.Context) error

// CheckReadiness runs every probe and joins the failures.
func (c Checks) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, check := range c {
		if err := check(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
