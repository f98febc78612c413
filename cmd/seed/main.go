package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/mansoorceksport/coachmatch/internal/config"
	"github.com/mansoorceksport/coachmatch/internal/domain"
	"github.com/mansoorceksport/coachmatch/internal/logger"
	"github.com/mansoorceksport/coachmatch/internal/repository"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Seeds one branch with a small trainer roster for local development
func main() {
	tenantID := flag.String("tenant", "tenant-dev", "tenant owning the seeded branch")
	branchName := flag.String("branch", "Downtown", "branch name")
	timezone := flag.String("tz", "Asia/Jakarta", "IANA timezone of the branch")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zlog := logger.New(cfg.Log.Level, "console")
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDB.URI))
	if err != nil {
		zlog.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	db := client.Database(cfg.MongoDB.Database)

	branch := &domain.Branch{TenantID: *tenantID, Name: *branchName, Timezone: *timezone}
	if err := repository.NewMongoBranchRepository(db).Create(ctx, branch); err != nil {
		zlog.Fatal("failed to create branch", zap.Error(err))
	}
	zlog.Info("created branch", zap.String("branch_id", branch.ID), zap.String("name", branch.Name))

	weekdays := func(start, end string) []domain.AvailabilityWindow {
		var out []domain.AvailabilityWindow
		for d := time.Monday; d <= time.Friday; d++ {
			out = append(out, domain.AvailabilityWindow{Weekday: d, Start: start, End: end})
		}
		return out
	}

	roster := []*domain.TrainerProfile{
		{Name: "Alya Putri", Specialties: []string{"yoga", "pilates"}, HourlyRate: 40, Rating: 4.8, RatingCount: 52, Availability: weekdays("07:00", "15:00")},
		{Name: "Bima Santoso", Specialties: []string{"strength training", "powerlifting"}, HourlyRate: 60, Rating: 4.5, RatingCount: 31, Availability: weekdays("12:00", "20:00")},
		{Name: "Citra Dewi", Specialties: []string{"hiit", "weight loss"}, HourlyRate: 45, Rating: 4.6, RatingCount: 18, Availability: weekdays("06:00", "14:00")},
		{Name: "Dimas Pratama", Specialties: []string{"boxing", "conditioning"}, HourlyRate: 55, Rating: 4.2, RatingCount: 9},
		{Name: "Eka Wulandari", Specialties: []string{"rehabilitation", "mobility"}, HourlyRate: 75, Rating: 4.9, RatingCount: 64, Availability: []domain.AvailabilityWindow{
			{Weekday: time.Saturday, Start: "08:00", End: "16:00"},
			{Weekday: time.Sunday, Start: "08:00", End: "12:00"},
		}},
	}

	trainers := repository.NewMongoTrainerRepository(db)
	if err := trainers.EnsureIndexes(ctx); err != nil {
		zlog.Warn("index creation failed", zap.Error(err))
	}
	for _, t := range roster {
		t.TenantID = *tenantID
		t.BranchID = branch.ID
		t.IsActive = true
		if err := trainers.Create(ctx, t); err != nil {
			zlog.Error("failed to create trainer", zap.String("name", t.Name), zap.Error(err))
			continue
		}
		zlog.Info("created trainer", zap.String("trainer_id", t.ID), zap.String("name", t.Name))
	}
	zlog.Info("seeding complete", zap.Int("trainers", len(roster)))
}
