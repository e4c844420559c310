package validators

import "go.mongodb.org/mongo-driver/bson"

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"room_id",
			"start_date",
			"end_date",
			"status",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"user_id": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"room_id": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"start_date": bson.M{
				"bsonType": "date",
			},

			"end_date": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "confirmed", "cancelled"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var RoomLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"version"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "long",
			},
			"version": bson.M{
				"bsonType": []string{"int", "long"},
			},
			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
