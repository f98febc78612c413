package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mansoorceksport/coachmatch/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoBranchRepository implements domain.BranchRepository
type MongoBranchRepository struct {
	collection *mongo.Collection
}

func NewMongoBranchRepository(db *mongo.Database) *MongoBranchRepository {
	return &MongoBranchRepository{
		collection: db.Collection("branches"),
	}
}

func (r *MongoBranchRepository) Create(ctx context.Context, branch *domain.Branch) error {
	objID := primitive.NewObjectID()
	branch.ID = objID.Hex()
	branch.CreatedAt = time.Now()
	branch.UpdatedAt = branch.CreatedAt

	doc := bson.M{
		"_id":        objID,
		"tenant_id":  branch.TenantID,
		"name":       branch.Name,
		"timezone":   branch.Timezone,
		"created_at": branch.CreatedAt,
		"updated_at": branch.UpdatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	return nil
}

func (r *MongoBranchRepository) GetByID(ctx context.Context, id string) (*domain.Branch, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	var raw bson.M
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&raw); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return mapBsonToBranch(raw), nil
}

func (r *MongoBranchRepository) GetByTenantID(ctx context.Context, tenantID string) ([]*domain.Branch, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var branches []*domain.Branch
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}
		branches = append(branches, mapBsonToBranch(raw))
	}
	return branches, cursor.Err()
}

func mapBsonToBranch(raw bson.M) *domain.Branch {
	branch := &domain.Branch{}
	if oid, ok := raw["_id"].(primitive.ObjectID); ok {
		branch.ID = oid.Hex()
	}
	if tid, ok := raw["tenant_id"].(string); ok {
		branch.TenantID = tid
	}
	if name, ok := raw["name"].(string); ok {
		branch.Name = name
	}
	if tz, ok := raw["timezone"].(string); ok {
		branch.Timezone = tz
	}
	if created, ok := raw["created_at"].(primitive.DateTime); ok {
		branch.CreatedAt = created.Time()
	}
	if updated, ok := raw["updated_at"].(primitive.DateTime); ok {
		branch.UpdatedAt = updated.Time()
	}
	return branch
}
