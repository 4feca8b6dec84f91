package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
)

// CustomerService resolves free-text customer names against the workspace's
// customer table.
type CustomerService struct {
	store       StoreClient
	db          *gorm.DB
	workspaceID string
	logger      *slog.Logger
}

// NewCustomerService creates a customer service scoped to one workspace.
func NewCustomerService(store StoreClient, database *gorm.DB, workspaceID string, logger *slog.Logger) *CustomerService {
	return &CustomerService{
		store:       store,
		db:          database,
		workspaceID: workspaceID,
		logger:      logger,
	}
}

// Resolve finds an existing customer by case-insensitive company-name match
// or creates a new lead. Matching is exact apart from case and surrounding
// whitespace; partial matches are deliberately not reused.
func (s *CustomerService) Resolve(ctx context.Context, companyName string) (*models.Customer, error) {
	name := strings.TrimSpace(companyName)
	if name == "" {
		return nil, nil
	}

	var rows []models.Customer
	filters := map[string]string{
		"workspace_id": "eq." + s.workspaceID,
		"company_name": "ilike." + name,
	}
	if err := s.store.Select(ctx, "customers", filters, &rows); err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return &rows[0], nil
	}

	customer := &models.Customer{
		ID:          uuid.New().String(),
		WorkspaceID: s.workspaceID,
		CompanyName: name,
		Status:      models.CustomerStatusLead,
	}
	if err := s.store.Insert(ctx, "customers", customer, customer); err != nil {
		return nil, err
	}
	if err := s.db.Create(customer).Error; err != nil {
		s.logger.Warn("Customer cache write failed", "customerId", customer.ID, "error", err)
	}
	return customer, nil
}
