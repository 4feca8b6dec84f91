package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/kaizenisitmax-pixel/voxi/pkg/db"
	"github.com/kaizenisitmax-pixel/voxi/pkg/event"
	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
)

type fakeStore struct {
	mu        sync.Mutex
	cards     []models.Card
	customers []models.Customer

	selectErr error
	insertErr error
	updateErr error

	inserted    []interface{}
	updated     []interface{}
	lastFilters map[string]string
}

func (f *fakeStore) Select(ctx context.Context, table string, filters map[string]string, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilters = filters
	if f.selectErr != nil {
		return f.selectErr
	}
	switch d := dest.(type) {
	case *[]models.Card:
		*d = append([]models.Card(nil), f.cards...)
	case *[]models.Customer:
		*d = append([]models.Customer(nil), f.customers...)
	}
	return nil
}

func (f *fakeStore) Insert(ctx context.Context, table string, record interface{}, dest interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, record)
	return nil
}

func (f *fakeStore) Update(ctx context.Context, table string, filters map[string]string, patch interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilters = filters
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, patch)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return database
}

func newCardFixture(t *testing.T) (*CardService, *fakeStore, *gorm.DB) {
	t.Helper()
	store := &fakeStore{}
	database := openTestDB(t)
	svc := NewCardService(store, database, "ws-1", "user-1", discardLogger())
	return svc, store, database
}

func TestRefreshPopulatesCache(t *testing.T) {
	svc, store, database := newCardFixture(t)
	store.cards = []models.Card{
		{ID: "c1", WorkspaceID: "ws-1", Title: "Fix pump", Status: "OPEN", Priority: "weird"},
		{ID: "c2", WorkspaceID: "ws-1", Title: "Invoice", Status: "done", UnreadCount: -3},
	}

	var refreshed int
	unsub := event.On(event.CardsRefreshed, func(ev event.Event) {
		refreshed = ev.(event.CardsRefreshedEvent).Count
	})
	defer unsub()

	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed != 2 {
		t.Fatalf("refreshed count = %d, want 2", refreshed)
	}
	if store.lastFilters["workspace_id"] != "eq.ws-1" || store.lastFilters["archived_at"] != "is.null" {
		t.Fatalf("filters = %v, want workspace and archived predicates", store.lastFilters)
	}

	var rows []models.Card
	if err := database.Find(&rows).Error; err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("cached %d rows, want 2", len(rows))
	}
	for _, row := range rows {
		if row.ID == "c1" && (row.Status != models.CardStatusOpen || row.Priority != models.PriorityNormal) {
			t.Fatalf("row c1 = %s/%s, want normalized open/normal", row.Status, row.Priority)
		}
		if row.ID == "c2" && row.UnreadCount != 0 {
			t.Fatalf("row c2 unread = %d, want clamped to 0", row.UnreadCount)
		}
	}
}

func TestRefreshReplacesStaleRows(t *testing.T) {
	svc, store, database := newCardFixture(t)
	store.cards = []models.Card{{ID: "old", WorkspaceID: "ws-1", Title: "Old"}}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	store.mu.Lock()
	store.cards = []models.Card{{ID: "new", WorkspaceID: "ws-1", Title: "New"}}
	store.mu.Unlock()
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	var rows []models.Card
	if err := database.Find(&rows).Error; err != nil {
		t.Fatalf("read cache: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "new" {
		t.Fatalf("cache rows = %v, want only the fresh row", rows)
	}
}

func TestListRanksCachedCards(t *testing.T) {
	svc, store, _ := newCardFixture(t)
	store.cards = []models.Card{
		{ID: "done", WorkspaceID: "ws-1", Status: models.CardStatusDone},
		{ID: "cancelled", WorkspaceID: "ws-1", Status: models.CardStatusCancelled},
		{ID: "normal", WorkspaceID: "ws-1", Status: models.CardStatusOpen, Priority: models.PriorityNormal},
		{ID: "urgent", WorkspaceID: "ws-1", Status: models.CardStatusOpen, Priority: models.PriorityUrgent},
	}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	part, err := svc.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(part.Open) != 2 || part.Open[0].ID != "urgent" {
		t.Fatalf("open = %v, want urgent first of 2", cardIDs(part.Open))
	}
	if len(part.Done) != 1 || part.Done[0].ID != "done" {
		t.Fatalf("done = %v, want the done card only", cardIDs(part.Done))
	}
}

func cardIDs(cards []models.Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

func TestCreateSetsDefaults(t *testing.T) {
	svc, store, database := newCardFixture(t)

	card, err := svc.Create(context.Background(), &models.Card{Title: "New job", Status: "done", UnreadCount: 7})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if card.ID == "" {
		t.Fatal("card.ID empty, want generated")
	}
	if card.Status != models.CardStatusOpen || card.UnreadCount != 0 {
		t.Fatalf("card = %s/%d, want open with zero unread", card.Status, card.UnreadCount)
	}
	if card.WorkspaceID != "ws-1" {
		t.Fatalf("workspace = %q, want ws-1", card.WorkspaceID)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("remote inserts = %d, want 1", len(store.inserted))
	}

	var cached models.Card
	if err := database.First(&cached, "id = ?", card.ID).Error; err != nil {
		t.Fatalf("card not cached: %v", err)
	}
}

func TestCreateRemoteFailure(t *testing.T) {
	svc, store, database := newCardFixture(t)
	store.insertErr = errors.New("store down")

	if _, err := svc.Create(context.Background(), &models.Card{Title: "New job"}); err == nil {
		t.Fatal("Create() error = nil, want remote failure")
	}
	var count int64
	database.Model(&models.Card{}).Count(&count)
	if count != 0 {
		t.Fatalf("cache rows = %d, want none after failed remote create", count)
	}
}

func TestRegisterMessageUnread(t *testing.T) {
	tests := []struct {
		name       string
		authorID   string
		wantUnread int
	}{
		{"other member bumps unread", "user-2", 1},
		{"own message does not", "user-1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, database := newCardFixture(t)
			store.cards = []models.Card{{ID: "c1", WorkspaceID: "ws-1", Status: models.CardStatusOpen}}
			if err := svc.Refresh(context.Background()); err != nil {
				t.Fatalf("Refresh() error = %v", err)
			}

			if err := svc.RegisterMessage(context.Background(), "c1", tt.authorID); err != nil {
				t.Fatalf("RegisterMessage() error = %v", err)
			}

			var card models.Card
			if err := database.First(&card, "id = ?", "c1").Error; err != nil {
				t.Fatalf("read card: %v", err)
			}
			if card.UnreadCount != tt.wantUnread {
				t.Fatalf("unread = %d, want %d", card.UnreadCount, tt.wantUnread)
			}
			if card.LastMessageAt == nil {
				t.Fatal("last_message_at not set")
			}
		})
	}
}

func TestMarkReadClearsUnread(t *testing.T) {
	svc, store, database := newCardFixture(t)
	store.cards = []models.Card{{ID: "c1", WorkspaceID: "ws-1", Status: models.CardStatusOpen, UnreadCount: 4}}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if err := svc.MarkRead(context.Background(), "c1"); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	var card models.Card
	database.First(&card, "id = ?", "c1")
	if card.UnreadCount != 0 {
		t.Fatalf("unread = %d, want 0", card.UnreadCount)
	}
}

func TestCompleteJob(t *testing.T) {
	svc, store, database := newCardFixture(t)
	store.cards = []models.Card{{ID: "c1", WorkspaceID: "ws-1", Status: models.CardStatusInProgress}}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if err := svc.CompleteJob(context.Background(), "c1"); err != nil {
		t.Fatalf("CompleteJob() error = %v", err)
	}
	var card models.Card
	database.First(&card, "id = ?", "c1")
	if card.Status != models.CardStatusDone || card.CompletedAt == nil {
		t.Fatalf("card = %s/%v, want done with completion time", card.Status, card.CompletedAt)
	}
}

func TestArchiveHidesCard(t *testing.T) {
	svc, store, _ := newCardFixture(t)
	store.cards = []models.Card{
		{ID: "keep", WorkspaceID: "ws-1", Status: models.CardStatusOpen},
		{ID: "gone", WorkspaceID: "ws-1", Status: models.CardStatusOpen},
	}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if err := svc.Archive(context.Background(), "gone"); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	part, err := svc.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(part.Open) != 1 || part.Open[0].ID != "keep" {
		t.Fatalf("open = %v, want only the kept card", cardIDs(part.Open))
	}
}

func TestPatchRemoteFailureLeavesCache(t *testing.T) {
	svc, store, database := newCardFixture(t)
	store.cards = []models.Card{{ID: "c1", WorkspaceID: "ws-1", Status: models.CardStatusOpen, Priority: models.PriorityNormal}}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	store.updateErr = errors.New("store down")

	if err := svc.ReportIssue(context.Background(), "c1"); err == nil {
		t.Fatal("ReportIssue() error = nil, want remote failure")
	}
	var card models.Card
	database.First(&card, "id = ?", "c1")
	if card.Priority != models.PriorityNormal {
		t.Fatalf("priority = %s, want unchanged after failed remote update", card.Priority)
	}
}

func TestReportIssueEscalates(t *testing.T) {
	svc, store, database := newCardFixture(t)
	store.cards = []models.Card{{ID: "c1", WorkspaceID: "ws-1", Status: models.CardStatusOpen}}
	if err := svc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if err := svc.ReportIssue(context.Background(), "c1"); err != nil {
		t.Fatalf("ReportIssue() error = %v", err)
	}
	var card models.Card
	database.First(&card, "id = ?", "c1")
	if card.Priority != models.PriorityUrgent {
		t.Fatalf("priority = %s, want urgent", card.Priority)
	}
}
