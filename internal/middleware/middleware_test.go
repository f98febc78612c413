package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mansoorceksport/coachmatch/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims domain.AccessClaims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/branches/:branchID",
		VerifyToken(testSecret),
		TenantScope(),
		AuthorizeRole(domain.RoleMember, domain.RoleTenantAdmin),
		func(c *fiber.Ctx) error {
			if !CanAccessBranch(c, c.Params("branchID")) {
				return c.SendStatus(fiber.StatusForbidden)
			}
			return c.SendString(TenantID(c) + "/" + UserID(c))
		},
	)
	return app
}

func TestAuthChain(t *testing.T) {
	app := protectedApp()

	member := domain.AccessClaims{
		UserID:       "member-1",
		Roles:        []string{domain.RoleMember},
		TenantID:     "tenant-1",
		HomeBranchID: "b1",
		BranchAccess: []string{"b2"},
	}
	admin := domain.AccessClaims{UserID: "owner", Roles: []string{domain.RoleTenantAdmin}, TenantID: "tenant-1"}
	coach := domain.AccessClaims{UserID: "coach-1", Roles: []string{domain.RoleCoach}, TenantID: "tenant-1"}
	solo := domain.AccessClaims{UserID: "solo", Roles: []string{domain.RoleMember}}
	expired := member
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name     string
		path     string
		header   string
		want     int
		wantBody string
	}{
		{"missing token", "/branches/b1", "", fiber.StatusUnauthorized, ""},
		{"wrong secret", "/branches/b1", "Bearer " + signToken(t, "other", member), fiber.StatusUnauthorized, ""},
		{"expired", "/branches/b1", "Bearer " + signToken(t, testSecret, expired), fiber.StatusUnauthorized, ""},
		{"member home branch", "/branches/b1", "Bearer " + signToken(t, testSecret, member), fiber.StatusOK, "tenant-1/member-1"},
		{"member extra branch", "/branches/b2", "Bearer " + signToken(t, testSecret, member), fiber.StatusOK, ""},
		{"member foreign branch", "/branches/b3", "Bearer " + signToken(t, testSecret, member), fiber.StatusForbidden, ""},
		{"admin any branch", "/branches/b3", "Bearer " + signToken(t, testSecret, admin), fiber.StatusOK, ""},
		{"coach lacks role", "/branches/b1", "Bearer " + signToken(t, testSecret, coach), fiber.StatusForbidden, ""},
		{"member without tenant", "/branches/b1", "Bearer " + signToken(t, testSecret, solo), fiber.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			if tt.wantBody != "" {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}

func TestTenantID_SuperAdminIsUnscoped(t *testing.T) {
	app := fiber.New()
	app.Get("/", VerifyToken(testSecret), TenantScope(), func(c *fiber.Ctx) error {
		return c.SendString("[" + TenantID(c) + "]")
	})

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+signToken(t, testSecret, domain.AccessClaims{
		UserID: "root", Roles: []string{domain.RoleSuperAdmin}, TenantID: "tenant-1",
	}))
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "[]", string(body))
}

func newIdempotentApp(t *testing.T) (*fiber.App, *miniredis.Miniredis, *int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var calls int32
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(UserIDKey, c.Get("X-User"))
		return c.Next()
	})
	app.Use(IdempotencyMiddleware(client, time.Hour, zaptest.NewLogger(t)))
	app.Post("/bookings", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&calls, 1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"booking": n})
	})
	app.Post("/fail", func(c *fiber.Ctx) error {
		atomic.AddInt32(&calls, 1)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "taken"})
	})
	return app, mr, &calls
}

func post(t *testing.T, app *fiber.App, path, user, correlationID string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-User", user)
	if correlationID != "" {
		req.Header.Set(idempotencyHeader, correlationID)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), resp.Header.Get("X-Idempotent-Replay")
}

func TestIdempotency_ReplaysStatusAndBody(t *testing.T) {
	app, mr, calls := newIdempotentApp(t)

	status, body, replay := post(t, app, "/bookings", "u1", "req-1")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, `{"booking":1}`, body)
	assert.Empty(t, replay)

	status, body, replay = post(t, app, "/bookings", "u1", "req-1")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, `{"booking":1}`, body)
	assert.Equal(t, "true", replay)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	assert.True(t, mr.Exists("idempotency:u1:req-1"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("idempotency:u1:req-1").Seconds(), 1)
}

func TestIdempotency_ScopedPerUser(t *testing.T) {
	app, _, calls := newIdempotentApp(t)

	post(t, app, "/bookings", "u1", "req-1")
	_, body, replay := post(t, app, "/bookings", "u2", "req-1")
	assert.JSONEq(t, `{"booking":2}`, body)
	assert.Empty(t, replay)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestIdempotency_SkipsFailuresAndMissingHeader(t *testing.T) {
	app, mr, calls := newIdempotentApp(t)

	post(t, app, "/fail", "u1", "req-2")
	status, _, _ := post(t, app, "/fail", "u1", "req-2")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.False(t, mr.Exists("idempotency:u1:req-2"))

	post(t, app, "/bookings", "u1", "")
	post(t, app, "/bookings", "u1", "")
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
}

func TestIdempotency_RedisDownStillServes(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	app := fiber.New()
	app.Use(IdempotencyMiddleware(client, time.Hour, zaptest.NewLogger(t)))
	app.Post("/bookings", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"booking": 1})
	})

	status, body, replay := post(t, app, "/bookings", "u1", "req-3")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, `{"booking":1}`, body)
	assert.Empty(t, replay)
}

func TestIdempotency_ConcurrentDuplicateWaitsForReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var calls int32
	entered := make(chan struct{})
	finish := make(chan struct{})

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(UserIDKey, "u1")
		return c.Next()
	})
	app.Use(IdempotencyMiddleware(client, time.Hour, zaptest.NewLogger(t)))
	app.Post("/bookings", func(c *fiber.Ctx) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(entered)
			<-finish
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"booking": atomic.LoadInt32(&calls)})
	})

	type answer struct {
		status int
		body   string
		replay string
		err    error
	}
	send := func(out chan<- answer) {
		req := httptest.NewRequest(fiber.MethodPost, "/bookings", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyHeader, "req-9")
		resp, err := app.Test(req, -1)
		if err != nil {
			out <- answer{err: err}
			return
		}
		body, _ := io.ReadAll(resp.Body)
		out <- answer{status: resp.StatusCode, body: string(body), replay: resp.Header.Get("X-Idempotent-Replay")}
	}

	first := make(chan answer, 1)
	second := make(chan answer, 1)
	go send(first)
	<-entered

	assert.True(t, mr.Exists("idempotency:u1:req-9"))
	go send(second)
	time.Sleep(2 * pollInterval)
	close(finish)

	a, b := <-first, <-second
	require.NoError(t, a.err)
	require.NoError(t, b.err)

	assert.Equal(t, fiber.StatusCreated, a.status)
	assert.Empty(t, a.replay)
	assert.Equal(t, fiber.StatusCreated, b.status)
	assert.Equal(t, "true", b.replay)
	assert.JSONEq(t, a.body, b.body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotency_StaleReservationIsReported(t *testing.T) {
	app, mr, calls := newIdempotentApp(t)
	require.NoError(t, mr.Set("idempotency:u1:req-10", `{"status":0}`))

	start := time.Now()
	status, _, _ := post(t, app, "/bookings", "u1", "req-10")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.GreaterOrEqual(t, time.Since(start), replayWait)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}
