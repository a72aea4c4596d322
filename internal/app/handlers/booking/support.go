package booking

import (
	"time"

	domainbooking "courtbook/internal/domain/booking"
)

func now(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}

func fieldError(field string, err error) error {
	verr := domainbooking.NewValidationError()
	verr.Wrap(field, err)
	return verr
}
