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

// Statuses that keep a trainer's slot occupied
var slotBlockingStatuses = bson.A{
	domain.AssignmentStatusScheduled,
	domain.AssignmentStatusRescheduled,
}

// MongoTrainerAssignmentRepository implements domain.TrainerAssignmentRepository
type MongoTrainerAssignmentRepository struct {
	collection *mongo.Collection
}

func NewMongoTrainerAssignmentRepository(db *mongo.Database) *MongoTrainerAssignmentRepository {
	return &MongoTrainerAssignmentRepository{
		collection: db.Collection("trainer_assignments"),
	}
}

// EnsureIndexes creates the schedule lookup indexes and the unique client id index
func (r *MongoTrainerAssignmentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "trainer_id", Value: 1}, {Key: "scheduled_at", Value: 1}}},
		{Keys: bson.D{{Key: "branch_id", Value: 1}, {Key: "scheduled_at", Value: 1}}},
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create trainer_assignments indexes: %w", err)
	}
	return nil
}

func (r *MongoTrainerAssignmentRepository) Create(ctx context.Context, assignment *domain.TrainerAssignment) error {
	assignment.CreatedAt = time.Now()
	assignment.UpdatedAt = assignment.CreatedAt

	result, err := r.collection.InsertOne(ctx, assignment)
	if err != nil {
		return fmt.Errorf("failed to create trainer assignment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		assignment.ID = oid.Hex()
	}
	return nil
}

func (r *MongoTrainerAssignmentRepository) GetByID(ctx context.Context, id string) (*domain.TrainerAssignment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// GetByClientID looks an assignment up by the ULID generated at booking time
func (r *MongoTrainerAssignmentRepository) GetByClientID(ctx context.Context, clientID string) (*domain.TrainerAssignment, error) {
	return r.findOne(ctx, bson.M{"client_id": clientID})
}

func (r *MongoTrainerAssignmentRepository) findOne(ctx context.Context, filter bson.M) (*domain.TrainerAssignment, error) {
	var assignment domain.TrainerAssignment
	if err := r.collection.FindOne(ctx, filter).Decode(&assignment); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *MongoTrainerAssignmentRepository) GetByBranch(ctx context.Context, branchID string, from, to time.Time) ([]*domain.TrainerAssignment, error) {
	return r.find(ctx, bson.M{
		"branch_id":    branchID,
		"scheduled_at": bson.M{"$gte": from, "$lt": to},
	})
}

func (r *MongoTrainerAssignmentRepository) GetByTrainer(ctx context.Context, trainerID string, from, to time.Time) ([]*domain.TrainerAssignment, error) {
	return r.find(ctx, bson.M{
		"trainer_id":   trainerID,
		"scheduled_at": bson.M{"$gte": from, "$lt": to},
	})
}

func (r *MongoTrainerAssignmentRepository) find(ctx context.Context, filter bson.M) ([]*domain.TrainerAssignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list trainer assignments: %w", err)
	}
	defer cursor.Close(ctx)

	assignments := []*domain.TrainerAssignment{}
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *MongoTrainerAssignmentRepository) UpdateStatus(ctx context.Context, id string, status domain.AssignmentStatus) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrInvalidID
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update assignment status: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrAssignmentNotFound
	}
	return nil
}

// HasConflict checks [start, end) against the trainer's slot-blocking sessions.
// The session end is derived from scheduled_at and duration_minutes on the server.
func (r *MongoTrainerAssignmentRepository) HasConflict(ctx context.Context, trainerID string, start, end time.Time) (bool, error) {
	sessionEnd := bson.M{"$add": bson.A{
		"$scheduled_at",
		bson.M{"$multiply": bson.A{"$duration_minutes", 60 * 1000}},
	}}

	filter := bson.M{
		"trainer_id":   trainerID,
		"status":       bson.M{"$in": slotBlockingStatuses},
		"scheduled_at": bson.M{"$lt": end},
		"$expr":        bson.M{"$gt": bson.A{sessionEnd, start}},
	}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check trainer conflicts: %w", err)
	}
	return count > 0, nil
}
