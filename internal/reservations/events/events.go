package events

import (
	"context"
	"roomly/pkg/model"
	"time"
)

const (
	EventCreated   = "reservation.created"
	EventUpdated   = "reservation.updated"
	EventConfirmed = "reservation.confirmed"
	EventCancelled = "reservation.cancelled"

	SchemaVersion = "1"
	Source        = "roomly.reservations"
)

type ReservationEvent struct {
	EventType     string    `json:"event_type"`
	ReservationID int64     `json:"reservation_id"`
	UserID        int64     `json:"user_id"`
	RoomID        int64     `json:"room_id"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewReservationEvent(eventType string, r *model.Reservation) ReservationEvent {
	return ReservationEvent{
		EventType:     eventType,
		ReservationID: r.ID,
		UserID:        r.UserID,
		RoomID:        r.RoomID,
		StartDate:     model.FormatDate(r.StartDate),
		EndDate:       model.FormatDate(r.EndDate),
		Status:        r.Status.String(),
		OccurredAt:    time.Now().UTC().Truncate(time.Second),
	}
}

// Publisher hands committed state changes to a broker.
type Publisher interface {
	Publish(ctx context.Context, event ReservationEvent) error
	Close() error
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, ReservationEvent) error { return nil }

func (noopPublisher) Close() error { return nil }
