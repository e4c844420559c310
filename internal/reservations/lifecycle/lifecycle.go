package lifecycle

import (
	"errors"
	"fmt"
	"roomly/pkg/model"
)

type Action string

const (
	Update  Action = "update"
	Confirm Action = "confirm"
	Cancel  Action = "cancel"
)

var (
	ErrNotPending              = errors.New("reservation is not pending")
	ErrAlreadyCancelled        = errors.New("reservation is already cancelled")
	ErrConfirmedNotCancellable = errors.New("cannot cancel a confirmed reservation; contact support")
	ErrUnknownStatus           = errors.New("unknown reservation status")
	ErrUnknownAction           = errors.New("unknown lifecycle action")
)

// Initial is the status every new reservation starts in.
const Initial = model.StatusPending

// Transition returns the status reached by applying action to current.
// Confirmed and Cancelled are terminal.
func Transition(current model.ReservationStatus, action Action) (model.ReservationStatus, error) {
	switch current {
	case model.StatusPending:
		switch action {
		case Update:
			return model.StatusPending, nil
		case Confirm:
			return model.StatusConfirmed, nil
		case Cancel:
			return model.StatusCancelled, nil
		}
		return current, fmt.Errorf("%w: %s", ErrUnknownAction, action)

	case model.StatusConfirmed:
		switch action {
		case Update, Confirm:
			return current, notPending(action, current)
		case Cancel:
			return current, ErrConfirmedNotCancellable
		}
		return current, fmt.Errorf("%w: %s", ErrUnknownAction, action)

	case model.StatusCancelled:
		switch action {
		case Update, Confirm:
			return current, notPending(action, current)
		case Cancel:
			return current, ErrAlreadyCancelled
		}
		return current, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	return current, fmt.Errorf("%w: %q", ErrUnknownStatus, current)
}

// CanTransition reports whether action is legal from current.
func CanTransition(current model.ReservationStatus, action Action) bool {
	_, err := Transition(current, action)
	return err == nil
}

// StatusError reports an update or confirm attempted on a reservation that
// has left Pending. It matches ErrNotPending.
type StatusError struct {
	Action Action
	Status model.ReservationStatus
}

func (e *StatusError) Error() string {
	verb := "modify"
	if e.Action == Confirm {
		verb = "confirm"
	}
	return fmt.Sprintf("can't %s reservation with status=%s", verb, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotPending
}

func notPending(action Action, current model.ReservationStatus) error {
	return &StatusError{Action: action, Status: current}
}
