package repository

import (
	"context"
	reserrors "roomly/internal/reservations/errors"
	"roomly/pkg/config"
	mongotx "roomly/pkg/db/mongo"
	"roomly/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const RoomLocksCollection = "Room_locks"

// RoomLockRepository serialises confirm transactions per room on MongoDB.
type RoomLockRepository interface {
	// Acquire bumps the room's lock document inside the caller's transaction.
	// A second transaction doing the same before the first ends gets a write
	// conflict, which the driver resolves by retrying it after the first
	// commits or aborts.
	Acquire(ctx context.Context, roomID int64) (*model.RoomLock, error)
}

type mongoRoomLockRepository struct {
	collection *mongo.Collection
}

func NewRoomLockRepository(cfg *config.Config) RoomLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRoomLockRepository{
		collection: db.Collection(RoomLocksCollection),
	}
}

func (r *mongoRoomLockRepository) Acquire(ctx context.Context, roomID int64) (*model.RoomLock, error) {
	if !mongotx.InTransaction(ctx) {
		return nil, reserrors.ErrNoTransaction
	}

	update := bson.M{
		"$inc": bson.M{"version": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var lock model.RoomLock
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": roomID}, update, opts).Decode(&lock); err != nil {
		return nil, err
	}
	return &lock, nil
}
