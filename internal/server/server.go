package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mansoorceksport/coachmatch/internal/config"
	"github.com/mansoorceksport/coachmatch/internal/domain"
	"github.com/mansoorceksport/coachmatch/internal/handler"
	"github.com/mansoorceksport/coachmatch/internal/matching"
	"github.com/mansoorceksport/coachmatch/internal/middleware"
	"github.com/mansoorceksport/coachmatch/internal/repository"
	"github.com/mansoorceksport/coachmatch/internal/service"
	"github.com/mansoorceksport/coachmatch/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config      *config.Config
	MongoDB     *mongo.Database
	RedisClient *redis.Client
	Logger      *zap.Logger
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) (*fiber.App, error) {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine, err := matching.NewEngine(cfg.Matching.AutoAssignment, cfg.Matching.Utilization)
	if err != nil {
		return nil, err
	}

	// Repositories
	cache := repository.NewRedisCacheRepository(deps.RedisClient)
	mongoTrainerRepo := repository.NewMongoTrainerRepository(deps.MongoDB)
	trainerRepo := repository.NewCachedTrainerRepository(mongoTrainerRepo, cache, cfg.Redis.RosterCacheTTL)
	assignmentRepo := repository.NewMongoTrainerAssignmentRepository(deps.MongoDB)
	branchRepo := repository.NewMongoBranchRepository(deps.MongoDB)

	ensureIndexes(log, mongoTrainerRepo, assignmentRepo)

	// Services
	matchingService := service.NewMatchingService(engine, trainerRepo, assignmentRepo, branchRepo, log.Named("matching"))
	bookingService := service.NewBookingService(matchingService, assignmentRepo, log.Named("booking"))

	// Handlers
	matchingHandler := handler.NewMatchingHandler(matchingService, bookingService, log.Named("http"))

	app := fiber.New(fiber.Config{
		AppName:      "CoachMatch API",
		BodyLimit:    cfg.Server.BodyLimitKB * 1024,
		ErrorHandler: errorHandler(log),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(telemetry.FiberMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID",
		AllowMethods: "GET, POST, PATCH, OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": cfg.OTEL.ServiceName,
		})
	})

	v1 := app.Group("/v1")
	v1.Use(middleware.VerifyToken(cfg.JWT.Secret))
	v1.Use(middleware.TenantScope())

	// ===========================================
	// BRANCH SCOPED MATCHING
	// ===========================================
	branches := v1.Group("/branches/:branch_id")
	members := middleware.AuthorizeRole(domain.RoleMember, domain.RoleCoach, domain.RoleTenantAdmin, domain.RoleSuperAdmin)
	staff := middleware.AuthorizeRole(domain.RoleCoach, domain.RoleTenantAdmin, domain.RoleSuperAdmin)

	branches.Post("/assignments/auto", members, matchingHandler.AutoAssign)
	branches.Post("/assignments",
		members,
		middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Redis.IdempotencyTTL, log.Named("idempotency")),
		matchingHandler.Book,
	)
	branches.Get("/recommendations", members, matchingHandler.Recommendations)
	branches.Get("/trainers/:trainer_id/utilization", staff, matchingHandler.TrainerUtilization)

	// ===========================================
	// ASSIGNMENT LIFECYCLE
	// ===========================================
	v1.Patch("/assignments/:id/status", staff, matchingHandler.UpdateStatus)

	return app, nil
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// ensureIndexes creates collection indexes. Failures are logged; queries still work without them.
func ensureIndexes(log *zap.Logger, repos ...indexer) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, repo := range repos {
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn("index creation failed", zap.Error(err))
		}
	}
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}
		if code >= fiber.StatusInternalServerError {
			log.Error("unhandled error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return c.Status(code).JSON(fiber.Map{"error": "Internal server error"})
		}
		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
