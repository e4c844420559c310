package model

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the wire format of reservation dates.
const DateLayout = "2006-01-02"

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

func (s ReservationStatus) String() string {
	return string(s)
}

// Reservation is the stored record. Dates are calendar days at UTC midnight
// and describe the half-open interval [StartDate, EndDate).
type Reservation struct {
	ID        int64             `json:"id" bson:"_id"`
	UserID    int64             `json:"user_id" bson:"user_id"`
	RoomID    int64             `json:"room_id" bson:"room_id"`
	StartDate time.Time         `json:"start_date" bson:"start_date"`
	EndDate   time.Time         `json:"end_date" bson:"end_date"`
	Status    ReservationStatus `json:"status" bson:"status"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" bson:"updated_at"`
}

func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// ReservationRequest is the create/update body. ID and Status are accepted
// only so that a caller supplying them can be rejected explicitly.
type ReservationRequest struct {
	ID        *int64 `json:"id,omitempty"`
	UserID    *int64 `json:"user_id" validate:"required,gt=0"`
	RoomID    *int64 `json:"room_id" validate:"required,gt=0"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Status    string `json:"status,omitempty"`
}

type ReservationResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	RoomID    int64     `json:"room_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchFilter narrows a listing. Nil ids match every reservation.
type SearchFilter struct {
	RoomID     *int64
	UserID     *int64
	PageSize   int
	PageNumber int
}

// Offset is the number of records to skip. It saturates at math.MaxInt64
// instead of wrapping.
func (f SearchFilter) Offset() int64 {
	if f.PageSize <= 0 || f.PageNumber <= 0 {
		return 0
	}
	if int64(f.PageNumber) > math.MaxInt64/int64(f.PageSize) {
		return math.MaxInt64
	}
	return int64(f.PageSize) * int64(f.PageNumber)
}

type AvailabilityRequest struct {
	RoomID    *int64 `json:"room_id" validate:"required,gt=0"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type AvailabilityResponse struct {
	RoomID    int64  `json:"room_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Available bool   `json:"available"`
}

// RoomLock is the per-room document written inside a confirm transaction so
// that concurrent confirms on the same room conflict with each other.
type RoomLock struct {
	RoomID    int64     `bson:"_id" json:"room_id"`
	Version   int64     `bson:"version" json:"version"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ParseDate parses a YYYY-MM-DD calendar date into UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", value, DateLayout)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
