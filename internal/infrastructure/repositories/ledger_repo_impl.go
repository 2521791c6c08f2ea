package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/infrastructure/models"
	"coin-ledger.backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LedgerRepository implements the append-only transaction log
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append inserts an entry and returns its id. A second entry with the same
// idempotency key fails with ErrDuplicateIdemKey.
func (r *LedgerRepository) Append(ctx context.Context, entry *entities.LedgerEntry) (uuid.UUID, error) {
	if entry.ID == uuid.Nil {
		entry.ID = utils.GenerateUUIDv7()
	}
	if entry.TransactionID == uuid.Nil {
		entry.TransactionID = entry.ID
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Status == "" {
		entry.Status = entities.EntryStatusCompleted
	}

	m, err := toLedgerModel(entry)
	if err != nil {
		return uuid.Nil, err
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, domainerrors.ErrDuplicateIdemKey
		}
		return uuid.Nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return entry.ID, nil
}

// FindByID gets an entry by ID
func (r *LedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.LedgerEntry, error) {
	var m models.LedgerEntry
	if err := GetDB(ctx, r.db).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toLedgerEntity(&m)
}

// FindByIdempotencyKey gets the entry that carries key
func (r *LedgerRepository) FindByIdempotencyKey(ctx context.Context, key string) (*entities.LedgerEntry, error) {
	var m models.LedgerEntry
	if err := GetDB(ctx, r.db).Where("idempotency_key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toLedgerEntity(&m)
}

// FindByTransactionID returns every entry of one logical operation, debits first
func (r *LedgerRepository) FindByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*entities.LedgerEntry, error) {
	var ms []models.LedgerEntry
	if err := GetDB(ctx, r.db).
		Where("transaction_id = ?", transactionID).
		Order("amount ASC").Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toLedgerEntities(ms)
}

// FindRelated returns entries that point at entryID
func (r *LedgerRepository) FindRelated(ctx context.Context, entryID uuid.UUID) ([]*entities.LedgerEntry, error) {
	var ms []models.LedgerEntry
	if err := GetDB(ctx, r.db).
		Where("related_entry_id = ?", entryID).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toLedgerEntities(ms)
}

// ListByUserID gets a user's entries, newest first, with pagination
func (r *LedgerRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.LedgerEntry, int64, error) {
	var total int64
	if err := GetDB(ctx, r.db).Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ms []models.LedgerEntry
	if err := GetDB(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	entries, err := toLedgerEntities(ms)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// SumCommitted adds up every entry of the user that affects the balance
func (r *LedgerRepository) SumCommitted(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := GetDB(ctx, r.db).Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND status <> ?", userID, entities.EntryStatusPending).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}

// SumOpenHolds adds up the amounts of holds nobody has settled yet
func (r *LedgerRepository) SumOpenHolds(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := GetDB(ctx, r.db).Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(-amount), 0)").
		Where("user_id = ? AND status = ?", userID, entities.EntryStatusPending).
		Where("NOT EXISTS (SELECT 1 FROM ledger_entries s WHERE s.related_entry_id = ledger_entries.id)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}

// ListExpiredHolds returns unsettled holds created before cutoff, oldest first
func (r *LedgerRepository) ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]*entities.LedgerEntry, error) {
	var ms []models.LedgerEntry
	if err := GetDB(ctx, r.db).
		Where("status = ? AND created_at < ?", entities.EntryStatusPending, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM ledger_entries s WHERE s.related_entry_id = ledger_entries.id)").
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error; err != nil {
		return nil, err
	}
	return toLedgerEntities(ms)
}

func toLedgerModel(e *entities.LedgerEntry) (*models.LedgerEntry, error) {
	meta, err := entities.EncodeMetadata(e.Metadata)
	if err != nil {
		return nil, err
	}
	m := &models.LedgerEntry{
		ID:             e.ID,
		TransactionID:  e.TransactionID,
		UserID:         e.UserID,
		Amount:         e.Amount,
		Type:           string(e.Type),
		Status:         string(e.Status),
		Description:    e.Description,
		RelatedEntryID: e.RelatedEntryID,
		BalanceAfter:   e.BalanceAfter,
		CreatedAt:      e.CreatedAt,
	}
	if e.IdempotencyKey.Valid {
		key := e.IdempotencyKey.String
		m.IdempotencyKey = &key
	}
	if meta != nil {
		m.Metadata = datatypes.JSON(meta)
	}
	return m, nil
}

func toLedgerEntity(m *models.LedgerEntry) (*entities.LedgerEntry, error) {
	meta, err := entities.DecodeMetadata(m.Metadata)
	if err != nil {
		return nil, err
	}
	return &entities.LedgerEntry{
		ID:             m.ID,
		TransactionID:  m.TransactionID,
		UserID:         m.UserID,
		Amount:         m.Amount,
		Type:           entities.EntryType(m.Type),
		Status:         entities.EntryStatus(m.Status),
		Description:    m.Description,
		IdempotencyKey: null.StringFromPtr(m.IdempotencyKey),
		RelatedEntryID: m.RelatedEntryID,
		BalanceAfter:   m.BalanceAfter,
		Metadata:       meta,
		CreatedAt:      m.CreatedAt,
	}, nil
}

func toLedgerEntities(ms []models.LedgerEntry) ([]*entities.LedgerEntry, error) {
	out := make([]*entities.LedgerEntry, 0, len(ms))
	for i := range ms {
		e, err := toLedgerEntity(&ms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
