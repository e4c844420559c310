package repository

import (
	"context"
	"roomly/pkg/model"
	"time"
)

// ReservationRepository is the store contract. Calls made with the ctx handed
// to an ExecuteTransaction callback join that transaction.
//
// Save and SetStatus are guarded: they only apply when the stored status is
// still expected, and otherwise return ErrStatusChanged.
type ReservationRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Reservation, error)
	FindPage(ctx context.Context, filter model.SearchFilter) ([]*model.Reservation, error)
	Count(ctx context.Context, filter model.SearchFilter) (int64, error)
	Create(ctx context.Context, reservation *model.Reservation) error
	Save(ctx context.Context, reservation *model.Reservation, expected model.ReservationStatus) error
	SetStatus(ctx context.Context, id int64, expected, status model.ReservationStatus) error
	ExistsByID(ctx context.Context, id int64) (bool, error)

	// FindOverlappingConfirmedLocked returns the confirmed reservations on
	// roomID overlapping [start, end), excluding excludeID, and holds an
	// exclusive lock on the room until the surrounding transaction ends.
	// It must be called inside ExecuteTransaction.
	FindOverlappingConfirmedLocked(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) ([]*model.Reservation, error)

	// FindOverlappingConfirmed is the unlocked variant used by advisory reads.
	FindOverlappingConfirmed(ctx context.Context, roomID int64, start, end time.Time) ([]*model.Reservation, error)

	ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
}
