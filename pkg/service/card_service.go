// Card service - remote store writes with a local eventually-consistent cache
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kaizenisitmax-pixel/voxi/pkg/event"
	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
	"github.com/kaizenisitmax-pixel/voxi/pkg/ranking"
)

// StoreClient is the remote relational store surface the services need.
// Filters are raw REST predicates ("workspace_id" -> "eq.ws-1").
type StoreClient interface {
	Select(ctx context.Context, table string, filters map[string]string, dest interface{}) error
	Insert(ctx context.Context, table string, record interface{}, dest interface{}) error
	Update(ctx context.Context, table string, filters map[string]string, patch interface{}) error
}

// CardService owns card reads and writes. The remote store is the source of
// truth: every mutation writes remotely first, then updates the local cache.
type CardService struct {
	store       StoreClient
	db          *gorm.DB
	workspaceID string
	userID      string
	logger      *slog.Logger
	now         func() time.Time
}

// NewCardService creates a card service scoped to one workspace and user.
func NewCardService(store StoreClient, database *gorm.DB, workspaceID, userID string, logger *slog.Logger) *CardService {
	return &CardService{
		store:       store,
		db:          database,
		workspaceID: workspaceID,
		userID:      userID,
		logger:      logger,
		now:         time.Now,
	}
}

// Refresh rebuilds the local cache from the remote store and notifies the
// UI. Safe to invoke redundantly; realtime notifications funnel here.
func (s *CardService) Refresh(ctx context.Context) error {
	var rows []models.Card
	filters := map[string]string{
		"workspace_id": "eq." + s.workspaceID,
		"archived_at":  "is.null",
	}
	if err := s.store.Select(ctx, "cards", filters, &rows); err != nil {
		return err
	}
	for i := range rows {
		rows[i].Normalize()
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ?", s.workspaceID).Delete(&models.Card{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return err
	}

	event.Emit(event.CardsRefreshedEvent{Count: len(rows)})
	return nil
}

// List returns the ranked card partitions from the local cache.
func (s *CardService) List() (ranking.Partition, error) {
	var rows []models.Card
	err := s.db.
		Where("workspace_id = ? AND archived_at IS NULL", s.workspaceID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return ranking.Partition{Open: []models.Card{}, Done: []models.Card{}}, err
	}
	for i := range rows {
		rows[i].Normalize()
	}
	return ranking.Rank(rows), nil
}

// Create persists a new card to the remote store and mirrors it into the
// cache. Cards always start open with no unread messages.
func (s *CardService) Create(ctx context.Context, card *models.Card) (*models.Card, error) {
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	card.WorkspaceID = s.workspaceID
	card.Status = models.CardStatusOpen
	card.UnreadCount = 0
	card.CreatedAt = s.now()
	card.UpdatedAt = card.CreatedAt

	if err := s.store.Insert(ctx, "cards", card, nil); err != nil {
		return nil, err
	}
	if err := s.db.Create(card).Error; err != nil {
		// Remote write succeeded; a cache miss heals on the next refresh.
		s.logger.Warn("Card cache write failed after remote create", "cardId", card.ID, "error", err)
	}

	followUp := false
	for _, l := range card.Labels {
		if l == models.LabelFollowUp {
			followUp = true
			break
		}
	}
	event.Emit(event.CardCreatedEvent{CardID: card.ID, FollowUp: followUp})
	return card, nil
}

// patch writes a partial update remotely, applies local column updates, and
// emits a change notification.
func (s *CardService) patch(ctx context.Context, cardID string, remote map[string]interface{}, local map[string]interface{}) error {
	filters := map[string]string{"id": "eq." + cardID, "workspace_id": "eq." + s.workspaceID}
	if err := s.store.Update(ctx, "cards", filters, remote); err != nil {
		return err
	}
	if err := s.db.Model(&models.Card{}).Where("id = ?", cardID).Updates(local).Error; err != nil {
		s.logger.Warn("Cache update failed", "cardId", cardID, "error", err)
	}
	event.Emit(event.CardUpdatedEvent{CardID: cardID})
	return nil
}

// RegisterMessage records chat activity on a card: bumps last_message_at and,
// for messages authored by someone else, the local unread counter. The
// remote store fans unread increments out to the other members.
func (s *CardService) RegisterMessage(ctx context.Context, cardID, authorID string) error {
	now := s.now()
	remote := map[string]interface{}{"last_message_at": now}
	local := map[string]interface{}{"last_message_at": now}
	if authorID != s.userID {
		local["unread_count"] = gorm.Expr("unread_count + 1")
	}
	return s.patch(ctx, cardID, remote, local)
}

// MarkRead clears the unread counter for the current member.
func (s *CardService) MarkRead(ctx context.Context, cardID string) error {
	return s.patch(ctx, cardID,
		map[string]interface{}{"unread_count": 0},
		map[string]interface{}{"unread_count": 0})
}

// ReportIssue escalates a card to urgent.
func (s *CardService) ReportIssue(ctx context.Context, cardID string) error {
	return s.patch(ctx, cardID,
		map[string]interface{}{"priority": models.PriorityUrgent},
		map[string]interface{}{"priority": models.PriorityUrgent})
}

// CompleteJob marks a card done with a completion timestamp.
func (s *CardService) CompleteJob(ctx context.Context, cardID string) error {
	now := s.now()
	return s.patch(ctx, cardID,
		map[string]interface{}{"status": models.CardStatusDone, "completed_at": now},
		map[string]interface{}{"status": models.CardStatusDone, "completed_at": now})
}

// Archive soft-deletes a card. Status is untouched; archived cards simply
// leave the visible list. The client never hard-deletes.
func (s *CardService) Archive(ctx context.Context, cardID string) error {
	now := s.now()
	filters := map[string]string{"id": "eq." + cardID, "workspace_id": "eq." + s.workspaceID}
	if err := s.store.Update(ctx, "cards", filters, map[string]interface{}{"archived_at": now}); err != nil {
		return err
	}
	if err := s.db.Model(&models.Card{}).Where("id = ?", cardID).Update("archived_at", now).Error; err != nil {
		s.logger.Warn("Cache update failed", "cardId", cardID, "error", err)
	}
	event.Emit(event.CardArchivedEvent{CardID: cardID})
	return nil
}
