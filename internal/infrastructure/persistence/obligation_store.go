package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/obligations/internal/domain/obligation"
	"github.com/erp/obligations/internal/domain/shared"
	"github.com/erp/obligations/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormObligationStore implements obligation.ObligationStore using GORM
type GormObligationStore struct {
	db *gorm.DB
}

// NewGormObligationStore creates a new GormObligationStore
func NewGormObligationStore(db *gorm.DB) *GormObligationStore {
	return &GormObligationStore{db: db}
}

// FindByID finds an obligation by its ID
func (r *GormObligationStore) FindByID(ctx context.Context, id uuid.UUID) (*obligation.Obligation, error) {
	var model models.ObligationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.With("obligation_id", id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindProvisionedSiblings returns the counterparty's provisioned obligations
// other than excludeID, earliest due date first
func (r *GormObligationStore) FindProvisionedSiblings(ctx context.Context, counterpartyID, excludeID uuid.UUID) ([]*obligation.Obligation, error) {
	var obligationModels []models.ObligationModel
	if err := r.db.WithContext(ctx).
		Where("counterparty_id = ? AND status = ? AND id <> ?", counterpartyID, obligation.StatusProvisioned, excludeID).
		Order("due_date ASC, sequence ASC").
		Find(&obligationModels).Error; err != nil {
		return nil, err
	}
	return toDomainObligations(obligationModels), nil
}

// FindByGroup returns every obligation of a negotiated term in sequence order
func (r *GormObligationStore) FindByGroup(ctx context.Context, groupID uuid.UUID) ([]*obligation.Obligation, error) {
	var obligationModels []models.ObligationModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("sequence ASC, due_date ASC").
		Find(&obligationModels).Error; err != nil {
		return nil, err
	}
	return toDomainObligations(obligationModels), nil
}

// FindAll lists obligations matching the filter
func (r *GormObligationStore) FindAll(ctx context.Context, filter obligation.ObligationFilter) ([]*obligation.Obligation, error) {
	var obligationModels []models.ObligationModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ObligationModel{}), filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	orderBy := ValidateSortField(filter.OrderBy, ObligationSortFields, "due_date")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir)).Order("sequence ASC")

	if err := query.Find(&obligationModels).Error; err != nil {
		return nil, err
	}
	return toDomainObligations(obligationModels), nil
}

// Count counts obligations matching the filter
func (r *GormObligationStore) Count(ctx context.Context, filter obligation.ObligationFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.ObligationModel{}), filter).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save writes the batch in one transaction. New obligations are inserted,
// changed ones are updated under an optimistic version check and unchanged
// ones are skipped. Nothing is written when any statement fails.
func (r *GormObligationStore) Save(ctx context.Context, batch []*obligation.Obligation) error {
	if len(batch) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range batch {
			if o == nil {
				continue
			}
			if err := saveObligation(tx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, o := range batch {
		if o != nil {
			o.MarkPersisted()
		}
	}
	return nil
}

func saveObligation(tx *gorm.DB, o *obligation.Obligation) error {
	model := models.ObligationModelFromDomain(o)

	switch {
	case o.IsNew():
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to create obligation %s: %w", o.ID, err)
		}
	case o.IsDirty():
		result := tx.Model(model).
			Where("id = ? AND version = ?", o.ID, o.Version-1).
			Select("*").
			Omit("id", "created_at").
			Updates(model)
		if result.Error != nil {
			return fmt.Errorf("failed to update obligation %s: %w", o.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(shared.ErrConcurrencyConflict.Code,
				"The obligation has been modified by another transaction").
				With("obligation_id", o.ID.String())
		}
	}
	return nil
}

func (r *GormObligationStore) applyFilter(query *gorm.DB, filter obligation.ObligationFilter) *gorm.DB {
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.GroupID != nil {
		query = query.Where("group_id = ?", *filter.GroupID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.DueFrom != nil {
		query = query.Where("due_date >= ?", obligation.NormalizeDate(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		query = query.Where("due_date <= ?", obligation.NormalizeDate(*filter.DueTo))
	}
	return query
}

func toDomainObligations(obligationModels []models.ObligationModel) []*obligation.Obligation {
	obligations := make([]*obligation.Obligation, len(obligationModels))
	for i := range obligationModels {
		obligations[i] = obligationModels[i].ToDomain()
	}
	return obligations
}

// Ensure GormObligationStore implements ObligationStore
var _ obligation.ObligationStore = (*GormObligationStore)(nil)
