package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mansoorceksport/coachmatch/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTrainerRepository implements domain.TrainerRepository
type MongoTrainerRepository struct {
	collection *mongo.Collection
}

func NewMongoTrainerRepository(db *mongo.Database) *MongoTrainerRepository {
	return &MongoTrainerRepository{
		collection: db.Collection("trainers"),
	}
}

// EnsureIndexes creates the roster lookup index
func (r *MongoTrainerRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "branch_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create trainers indexes: %w", err)
	}
	return nil
}

func (r *MongoTrainerRepository) Create(ctx context.Context, trainer *domain.TrainerProfile) error {
	trainer.CreatedAt = time.Now()
	trainer.UpdatedAt = trainer.CreatedAt
	if trainer.Status == "" {
		trainer.Status = domain.TrainerStatusActive
	}

	result, err := r.collection.InsertOne(ctx, trainer)
	if err != nil {
		return fmt.Errorf("failed to create trainer: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		trainer.ID = oid.Hex()
	}
	return nil
}

func (r *MongoTrainerRepository) GetByID(ctx context.Context, id string) (*domain.TrainerProfile, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var trainer domain.TrainerProfile
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&trainer); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrTrainerNotFound
		}
		return nil, err
	}
	return &trainer, nil
}

// GetByBranch returns the branch roster ordered by id. An empty tenantID matches any tenant.
func (r *MongoTrainerRepository) GetByBranch(ctx context.Context, tenantID, branchID string) ([]*domain.TrainerProfile, error) {
	filter := bson.M{"branch_id": branchID}
	if tenantID != "" {
		filter["tenant_id"] = tenantID
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list trainers: %w", err)
	}
	defer cursor.Close(ctx)

	trainers := []*domain.TrainerProfile{}
	if err := cursor.All(ctx, &trainers); err != nil {
		return nil, err
	}
	return trainers, nil
}

func (r *MongoTrainerRepository) Update(ctx context.Context, trainer *domain.TrainerProfile) error {
	oid, err := primitive.ObjectIDFromHex(trainer.ID)
	if err != nil {
		return domain.ErrInvalidID
	}
	trainer.UpdatedAt = time.Now()

	update := bson.M{
		"$set": bson.M{
			"name":         trainer.Name,
			"is_active":    trainer.IsActive,
			"status":       trainer.Status,
			"specialties":  trainer.Specialties,
			"hourly_rate":  trainer.HourlyRate,
			"rating":       trainer.Rating,
			"rating_count": trainer.RatingCount,
			"availability": trainer.Availability,
			"time_off":     trainer.TimeOff,
			"updated_at":   trainer.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update trainer: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrTrainerNotFound
	}
	return nil
}
