package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/friendsincode/cadence/internal/events"
	"github.com/friendsincode/cadence/internal/models"
	"github.com/friendsincode/cadence/internal/recurrence"
	"github.com/friendsincode/cadence/internal/slots"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testService(t *testing.T, queueDepth int) (*Service, *gorm.DB, *events.Bus) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Account{}, &models.Post{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	calc := recurrence.NewCalculator(recurrence.StandardDefaults(), time.UTC)
	provider := slots.New(db, calc, zerolog.Nop())
	bus := events.NewBus()
	return New(db, provider, bus, time.Minute, queueDepth, zerolog.Nop()), db, bus
}

func seedAccount(t *testing.T, db *gorm.DB) models.Account {
	t.Helper()

	account := models.Account{
		ID:               uuid.NewString(),
		UserID:           uuid.NewString(),
		Name:             "daily poster",
		PostingPeriod:    "day",
		PostingFrequency: 1,
		PostingHour:      "09:00",
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func seedDraft(t *testing.T, db *gorm.DB, accountID, caption string) models.Post {
	t.Helper()

	post := models.Post{
		ID:        uuid.NewString(),
		AccountID: accountID,
		AICaption: caption,
		Status:    models.PostDraft,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

func TestTick_SchedulesCaptionedDrafts(t *testing.T) {
	t.Parallel()

	svc, db, _ := testService(t, 2)
	account := seedAccount(t, db)
	seedDraft(t, db, account.ID, "first caption")
	seedDraft(t, db, account.ID, "second caption")
	uncaptioned := seedDraft(t, db, account.ID, "")

	svc.lastDispatch = time.Now()
	svc.Tick(context.Background())

	var scheduled []models.Post
	if err := db.Where("status = ?", models.PostScheduled).Order("scheduled_at ASC").Find(&scheduled).Error; err != nil {
		t.Fatalf("load scheduled: %v", err)
	}
	if len(scheduled) != 2 {
		t.Fatalf("got %d scheduled posts, want 2", len(scheduled))
	}
	for i, post := range scheduled {
		if post.ScheduledAt == nil || !post.ScheduledAt.After(time.Now()) {
			t.Errorf("post %d has no future slot: %v", i, post.ScheduledAt)
		}
	}
	if scheduled[1].ScheduledAt.Sub(*scheduled[0].ScheduledAt) != 24*time.Hour {
		t.Errorf("slots %v and %v not 24h apart", scheduled[0].ScheduledAt, scheduled[1].ScheduledAt)
	}

	var untouched models.Post
	if err := db.First(&untouched, "id = ?", uncaptioned.ID).Error; err != nil {
		t.Fatalf("load uncaptioned: %v", err)
	}
	if untouched.Status != models.PostDraft {
		t.Fatalf("uncaptioned draft was scheduled: %v", untouched.Status)
	}
}

func TestTick_RespectsQueueDepth(t *testing.T) {
	t.Parallel()

	svc, db, _ := testService(t, 1)
	account := seedAccount(t, db)

	future := time.Now().Add(48 * time.Hour)
	existing := models.Post{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		AICaption:   "already queued",
		Status:      models.PostScheduled,
		ScheduledAt: &future,
	}
	if err := db.Create(&existing).Error; err != nil {
		t.Fatalf("create scheduled post: %v", err)
	}
	draft := seedDraft(t, db, account.ID, "waiting")

	svc.lastDispatch = time.Now()
	svc.Tick(context.Background())

	var got models.Post
	if err := db.First(&got, "id = ?", draft.ID).Error; err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if got.Status != models.PostDraft {
		t.Fatalf("draft scheduled past queue depth: %v", got.Status)
	}
}

func TestTick_DispatchesPostsOverdueAtStartup(t *testing.T) {
	t.Parallel()

	svc, db, bus := testService(t, 1)
	account := seedAccount(t, db)

	due := bus.Subscribe(events.EventPostPublishDue)

	slot := time.Now().Add(-time.Hour)
	post := models.Post{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		AICaption:   "missed during downtime",
		Status:      models.PostScheduled,
		ScheduledAt: &slot,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}

	// First tick of a fresh service: no prior dispatch window exists.
	svc.Tick(context.Background())

	select {
	case payload := <-due:
		if payload["post_id"] != post.ID {
			t.Fatalf("dispatched post %v, want %s", payload["post_id"], post.ID)
		}
	default:
		t.Fatal("post overdue at startup was never dispatched")
	}
}

func TestDispatchDue_IncludesWindowLowerBound(t *testing.T) {
	t.Parallel()

	svc, db, bus := testService(t, 1)
	account := seedAccount(t, db)

	due := bus.Subscribe(events.EventPostPublishDue)

	slot := time.Now().Add(-time.Minute)
	post := models.Post{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		AICaption:   "on the boundary",
		Status:      models.PostScheduled,
		ScheduledAt: &slot,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}

	svc.lastDispatch = slot
	svc.dispatchDue(context.Background())

	select {
	case payload := <-due:
		if payload["post_id"] != post.ID {
			t.Fatalf("dispatched post %v, want %s", payload["post_id"], post.ID)
		}
	default:
		t.Fatal("post scheduled exactly at the window start was dropped")
	}
}

func TestTick_ConcurrentPassesDispatchOnce(t *testing.T) {
	t.Parallel()

	svc, db, bus := testService(t, 1)
	account := seedAccount(t, db)

	due := bus.Subscribe(events.EventPostPublishDue)

	slot := time.Now().Add(-time.Minute)
	post := models.Post{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		AICaption:   "due now",
		Status:      models.PostScheduled,
		ScheduledAt: &slot,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}

	// A forced pass racing the loop's pass must not double-consume the window.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Tick(context.Background())
		}()
	}
	wg.Wait()

	emitted := 0
	for {
		select {
		case <-due:
			emitted++
		default:
			if emitted != 1 {
				t.Fatalf("publish_due emitted %d times, want 1", emitted)
			}
			return
		}
	}
}

func TestDispatchDue_EmitsOnceAndAdvancesWindow(t *testing.T) {
	t.Parallel()

	svc, db, bus := testService(t, 1)
	account := seedAccount(t, db)

	due := bus.Subscribe(events.EventPostPublishDue)

	slot := time.Now().Add(-time.Minute)
	post := models.Post{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		AICaption:   "due now",
		Status:      models.PostScheduled,
		ScheduledAt: &slot,
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}

	svc.lastDispatch = time.Now().Add(-time.Hour)
	svc.dispatchDue(context.Background())

	select {
	case payload := <-due:
		if payload["post_id"] != post.ID {
			t.Fatalf("dispatched post %v, want %s", payload["post_id"], post.ID)
		}
	default:
		t.Fatal("expected a publish_due event")
	}

	// Second pass covers only the window since the first one.
	svc.dispatchDue(context.Background())
	select {
	case payload := <-due:
		t.Fatalf("post %v dispatched twice", payload["post_id"])
	default:
	}
}
