package booking

import "fmt"

type Status string

const (
	StatusPending           Status = "pending"
	StatusConfirmed         Status = "confirmed"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
	StatusCancelledBySystem Status = "cancelled_by_system"
	StatusExpired           Status = "expired"
)

// adminTransitions lists the moves an administrator may force. Expiry is
// reserved for the sweeper.
var adminTransitions = map[Status][]Status{
	StatusPending:           {StatusConfirmed, StatusCompleted, StatusCancelled, StatusCancelledBySystem},
	StatusConfirmed:         {StatusCompleted, StatusCancelled},
	StatusCompleted:         {},
	StatusCancelled:         {},
	StatusCancelledBySystem: {},
	StatusExpired:           {},
}

func (s Status) IsValid() bool {
	_, ok := adminTransitions[s]
	return ok
}

// IsTerminal reports whether no transition is accepted from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusCancelledBySystem, StatusExpired:
		return true
	}
	return false
}

// ClaimsSlots reports whether a booking in s holds its slots.
func (s Status) ClaimsSlots() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

func (s Status) canBeForcedTo(target Status) bool {
	for _, t := range adminTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// ReleasingStatuses are the statuses whose bookings no longer claim slots.
func ReleasingStatuses() []Status {
	return []Status{StatusCancelled, StatusCancelledBySystem, StatusExpired}
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch p := PaymentStatus(raw); p {
	case PaymentUnpaid, PaymentPaid, PaymentRefunded:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentStatus, raw)
}

// Actor identifies who asks for a transition.
type Actor string

const (
	// ActorCustomer is the payment flow acting for the booking owner.
	ActorCustomer Actor = "customer"
	ActorAdmin    Actor = "admin"
	// ActorSystem is a trusted payment-outcome report from the broker.
	ActorSystem Actor = "system"
)
