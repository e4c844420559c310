package repository

import (
	"context"
	"errors"
	"fmt"
	reserrors "roomly/internal/reservations/errors"
	"roomly/pkg/config"
	mongotx "roomly/pkg/db/mongo"
	"roomly/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName     = "Reservations"
	CountersCollection = "Counters"

	reservationSequence = "reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	counters   *mongo.Collection
	roomLocks  RoomLockRepository
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		counters:   db.Collection(CountersCollection),
		roomLocks:  NewRoomLockRepository(cfg),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout bounds standalone calls. Inside a transaction the ctx is
// returned unchanged so the session stays attached.
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.InTransaction(ctx) {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id int64) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}
	return &reservation, nil
}

func (r *mongoReservationRepository) FindPage(ctx context.Context, filter model.SearchFilter) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if filter.PageSize > 0 {
		opts.SetLimit(int64(filter.PageSize)).SetSkip(filter.Offset())
	}

	return r.find(ctx, r.buildSearchFilter(filter), opts)
}

func (r *mongoReservationRepository) Count(ctx context.Context, filter model.SearchFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, r.buildSearchFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	reservation.ID = id
	reservation.CreatedAt = now
	reservation.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, reservation); err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}
	return nil
}

func (r *mongoReservationRepository) Save(ctx context.Context, reservation *model.Reservation, expected model.ReservationStatus) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"user_id":    reservation.UserID,
			"room_id":    reservation.RoomID,
			"start_date": reservation.StartDate,
			"end_date":   reservation.EndDate,
			"status":     reservation.Status,
			"updated_at": now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": reservation.ID, "status": expected}, update)
	if err != nil {
		return fmt.Errorf("failed to save reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.guardFailure(ctx, reservation.ID)
	}

	reservation.UpdatedAt = now
	return nil
}

func (r *mongoReservationRepository) SetStatus(ctx context.Context, id int64, expected, status model.ReservationStatus) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "status": expected}, update)
	if err != nil {
		return fmt.Errorf("failed to set reservation status: %w", err)
	}
	if result.MatchedCount == 0 {
		return r.guardFailure(ctx, id)
	}
	return nil
}

func (r *mongoReservationRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check reservation: %w", err)
	}
	return count > 0, nil
}

func (r *mongoReservationRepository) FindOverlappingConfirmedLocked(ctx context.Context, roomID int64, start, end time.Time, excludeID int64) ([]*model.Reservation, error) {
	if !mongotx.InTransaction(ctx) {
		return nil, reserrors.ErrNoTransaction
	}

	if _, err := r.roomLocks.Acquire(ctx, roomID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: room %d: %w", reserrors.ErrLockTimeout, roomID, err)
		}
		return nil, fmt.Errorf("failed to lock room %d: %w", roomID, err)
	}

	filter := overlapFilter(roomID, start, end)
	filter["_id"] = bson.M{"$ne": excludeID}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (r *mongoReservationRepository) FindOverlappingConfirmed(ctx context.Context, roomID int64, start, end time.Time) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	return r.find(ctx, overlapFilter(roomID, start, end), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

// ExecuteTransaction bounds the whole transaction, driver retries on write
// conflicts included, by the lock and write timeouts. Running out of time is
// reported as ErrLockTimeout.
func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongotx.InTransaction(ctx) {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.LockTimeout+r.cfg.WriteTimeout)
	defer cancel()

	err := r.txManager.ExecuteTransaction(ctx, fn)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, reserrors.ErrLockTimeout) {
		return fmt.Errorf("%w: %w", reserrors.ErrLockTimeout, err)
	}
	return err
}

func (r *mongoReservationRepository) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, nil)
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Reservation, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	reservations := []*model.Reservation{}
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

// nextID allocates the next reservation id from the counters collection.
func (r *mongoReservationRepository) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": reservationSequence},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate reservation id: %w", err)
	}
	return counter.Seq, nil
}

func (r *mongoReservationRepository) guardFailure(ctx context.Context, id int64) error {
	exists, err := r.ExistsByID(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return reserrors.ErrNotFound
	}
	return reserrors.ErrStatusChanged
}

func (r *mongoReservationRepository) buildSearchFilter(filter model.SearchFilter) bson.M {
	query := bson.M{}
	if filter.RoomID != nil {
		query["room_id"] = *filter.RoomID
	}
	if filter.UserID != nil {
		query["user_id"] = *filter.UserID
	}
	return query
}

func overlapFilter(roomID int64, start, end time.Time) bson.M {
	return bson.M{
		"room_id":    roomID,
		"status":     model.StatusConfirmed,
		"start_date": bson.M{"$lt": end},
		"end_date":   bson.M{"$gt": start},
	}
}
