package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/cadence/internal/auth"
	"github.com/friendsincode/cadence/internal/config"
	"github.com/friendsincode/cadence/internal/events"
	"github.com/friendsincode/cadence/internal/media"
	"github.com/friendsincode/cadence/internal/models"
	"github.com/friendsincode/cadence/internal/recurrence"
	"github.com/friendsincode/cadence/internal/scheduler"
	"github.com/friendsincode/cadence/internal/slots"
	"github.com/friendsincode/cadence/internal/webhooks"
)

type testEnv struct {
	api    *API
	router chi.Router
	db     *gorm.DB
	bus    *events.Bus
	user   models.User
	token  string
}

func newTestEnv(t *testing.T, webhookURL string) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Account{}, &models.Post{}, &models.WebhookDelivery{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := &config.Config{
		Environment:         "test",
		JWTSigningKey:       "test-secret",
		Timezone:            "UTC",
		SchedulerQueueDepth: 2,
		SchedulerInterval:   time.Minute,
		MaxUploadSizeMB:     1,
		UploadRoot:          t.TempDir(),
		MakeWebhookURL:      webhookURL,
		WebhookSecret:       "wh-secret",
		CronSecret:          "cron-secret",
	}

	logger := zerolog.Nop()
	bus := events.NewBus()
	calc := recurrence.NewCalculator(recurrence.StandardDefaults(), cfg.Location())
	provider := slots.New(db, calc, logger)
	sched := scheduler.New(db, provider, bus, cfg.SchedulerInterval, cfg.SchedulerQueueDepth, logger)
	webhookSvc := webhooks.NewService(db, bus, cfg.MakeWebhookURL, cfg.WebhookSecret, logger)

	mediaSvc, err := media.NewService(cfg, logger)
	if err != nil {
		t.Fatalf("media service: %v", err)
	}

	a := New(db, cfg, calc, provider, sched, mediaSvc, webhookSvc, nil, bus, logger)
	router := chi.NewRouter()
	a.Routes(router)

	hash, err := auth.HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := models.User{ID: uuid.NewString(), Email: "owner@example.com", Password: hash}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	token, err := auth.Issue([]byte(cfg.JWTSigningKey), auth.Claims{UserID: user.ID, Email: user.Email}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	return &testEnv{api: a, router: router, db: db, bus: bus, user: user, token: token}
}

func (e *testEnv) seedAccount(t *testing.T, userID string) models.Account {
	t.Helper()
	account := models.Account{
		ID:               uuid.NewString(),
		UserID:           userID,
		Name:             "Test Brand",
		MakeConnection:   "brand-main",
		PostingPeriod:    "week",
		PostingFrequency: 1,
		PostingDay:       "monday",
		PostingHour:      "09:00",
	}
	if err := e.db.Create(&account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func (e *testEnv) seedPost(t *testing.T, accountID string, status models.PostStatus, caption string, scheduledAt *time.Time) models.Post {
	t.Helper()
	post := models.Post{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		ImageURL:    "/uploads/" + accountID + "/img.png",
		AICaption:   caption,
		Status:      status,
		ScheduledAt: scheduledAt,
	}
	if err := e.db.Create(&post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

// do issues an authenticated JSON request through the full router.
func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// doAnon issues an unauthenticated JSON request with optional extra headers.
func (e *testEnv) doAnon(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}
