package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/domain/repositories"
	"coin-ledger.backend/pkg/logger"
	"coin-ledger.backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
)

const defaultHoldTTL = 15 * time.Minute

// SideEffects runs the follow-ups of a committed operation. It never reports
// failures back to the caller.
type SideEffects interface {
	AfterTransfer(ctx context.Context, rec *entities.TransferRecord)
	AfterSystemEntry(ctx context.Context, rec *entities.SystemEntryRecord)
}

// TransferEngine moves coins between wallets and writes the matching ledger
// entries inside one unit of work.
type TransferEngine struct {
	uow        repositories.UnitOfWork
	walletRepo repositories.WalletRepository
	ledgerRepo repositories.LedgerRepository
	userRepo   repositories.UserRepository
	assetRepo  repositories.AssetRepository
	effects    SideEffects
	holdTTL    time.Duration
	now        func() time.Time
}

// NewTransferEngine creates a new transfer engine. effects may be nil.
func NewTransferEngine(
	uow repositories.UnitOfWork,
	walletRepo repositories.WalletRepository,
	ledgerRepo repositories.LedgerRepository,
	userRepo repositories.UserRepository,
	assetRepo repositories.AssetRepository,
	effects SideEffects,
	holdTTL time.Duration,
) *TransferEngine {
	if holdTTL <= 0 {
		holdTTL = defaultHoldTTL
	}
	return &TransferEngine{
		uow:        uow,
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		userRepo:   userRepo,
		assetRepo:  assetRepo,
		effects:    effects,
		holdTTL:    holdTTL,
		now:        time.Now,
	}
}

// HoldTTL is how long a hold stays open before the expiry job releases it
func (e *TransferEngine) HoldTTL() time.Duration {
	return e.holdTTL
}

// Transfer debits the sender and credits the receiver exactly once per idempotency key
func (e *TransferEngine) Transfer(ctx context.Context, in *entities.TransferInput) (rec *entities.TransferRecord, err error) {
	start := time.Now()
	defer func() { observe("transfer", start, rec != nil && rec.Replayed, err) }()

	if in.IdempotencyKey == "" {
		return nil, domainerrors.NewValidationError("idempotencyKey", "is required")
	}
	if prior, err := e.priorEntry(ctx, in.IdempotencyKey); err != nil || prior != nil {
		if err != nil {
			return nil, err
		}
		return e.replayTransfer(ctx, prior, in)
	}
	if err := e.validateTransfer(ctx, in); err != nil {
		return nil, err
	}

	err = e.uow.Do(ctx, func(txCtx context.Context) error {
		var txErr error
		rec, txErr = e.transferTx(txCtx, in, nil)
		return txErr
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateIdemKey) {
			return e.replayAfterRace(ctx, in.IdempotencyKey, func(prior *entities.LedgerEntry) (*entities.TransferRecord, error) {
				return e.replayTransfer(ctx, prior, in)
			})
		}
		return nil, classify("transfer", err)
	}

	e.afterTransfer(ctx, rec)
	return rec, nil
}

func (e *TransferEngine) validateTransfer(ctx context.Context, in *entities.TransferInput) error {
	switch {
	case in.SenderID == uuid.Nil:
		return domainerrors.NewValidationError("senderId", "is required")
	case in.ReceiverID == uuid.Nil:
		return domainerrors.NewValidationError("receiverId", "is required")
	case in.Amount <= 0:
		return domainerrors.NewValidationError("amount", "must be positive")
	case in.SenderID == in.ReceiverID:
		return domainerrors.NewValidationError("receiverId", "must differ from sender")
	case !in.Type.IsTransfer():
		return domainerrors.NewValidationError("type", fmt.Sprintf("%q is not a transfer type", in.Type))
	case !entities.MetadataMatches(in.Type, in.Metadata):
		return domainerrors.NewValidationError("metadata", fmt.Sprintf("does not match type %q", in.Type))
	}
	return e.requireUser(ctx, "receiverId", in.ReceiverID)
}

func (e *TransferEngine) requireUser(ctx context.Context, field string, id uuid.UUID) error {
	exists, err := e.userRepo.Exists(ctx, id)
	if err != nil {
		return &domainerrors.TransientStoreError{Op: "lookup user", Err: err}
	}
	if !exists {
		return domainerrors.NewValidationError(field, "does not exist")
	}
	return nil
}

// transferTx runs inside a unit of work. related, when set, is the entry the
// debit settles (the hold of a capture).
func (e *TransferEngine) transferTx(ctx context.Context, in *entities.TransferInput, related *entities.LedgerEntry) (*entities.TransferRecord, error) {
	locked, err := e.walletRepo.LockWallets(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, err
	}

	var debited *entities.Wallet
	if related == nil {
		if available := locked[in.SenderID].Available(); available < in.Amount {
			return nil, &domainerrors.InsufficientFundsError{Required: in.Amount, Available: available}
		}
		debited, err = e.walletRepo.Debit(ctx, in.SenderID, in.Amount)
	} else {
		debited, err = e.walletRepo.CaptureHold(ctx, in.SenderID, in.Amount)
	}
	if err != nil {
		return nil, err
	}

	if err := e.walletRepo.EnsureWallet(ctx, in.ReceiverID); err != nil {
		return nil, err
	}
	credited, err := e.walletRepo.Credit(ctx, in.ReceiverID, in.Amount)
	if err != nil {
		return nil, err
	}

	now := e.now()
	debit := &entities.LedgerEntry{
		UserID:         in.SenderID,
		Amount:         -in.Amount,
		Type:           in.Type,
		Status:         entities.EntryStatusCompleted,
		Description:    in.Description,
		IdempotencyKey: null.StringFrom(in.IdempotencyKey),
		BalanceAfter:   debited.Balance,
		Metadata:       in.Metadata,
		CreatedAt:      now,
	}
	if related != nil {
		debit.RelatedEntryID = &related.ID
	}
	debitID, err := e.ledgerRepo.Append(ctx, debit)
	if err != nil {
		return nil, err
	}

	credit := &entities.LedgerEntry{
		TransactionID:  debitID,
		UserID:         in.ReceiverID,
		Amount:         in.Amount,
		Type:           in.Type,
		Status:         entities.EntryStatusCompleted,
		Description:    in.Description,
		RelatedEntryID: &debitID,
		BalanceAfter:   credited.Balance,
		Metadata:       in.Metadata,
		CreatedAt:      now,
	}
	creditID, err := e.ledgerRepo.Append(ctx, credit)
	if err != nil {
		return nil, err
	}

	return &entities.TransferRecord{
		TransactionID:      debitID,
		DebitEntryID:       debitID,
		CreditEntryID:      creditID,
		SenderID:           in.SenderID,
		ReceiverID:         in.ReceiverID,
		Amount:             in.Amount,
		Type:               in.Type,
		Metadata:           in.Metadata,
		NewSenderBalance:   debited.Balance,
		NewReceiverBalance: credited.Balance,
		CreatedAt:          now,
	}, nil
}

// replayTransfer rebuilds the outcome of the transfer that owns prior. in may
// be nil when the caller has no parameters to compare.
func (e *TransferEngine) replayTransfer(ctx context.Context, prior *entities.LedgerEntry, in *entities.TransferInput) (*entities.TransferRecord, error) {
	entries, err := e.ledgerRepo.FindByTransactionID(ctx, prior.TransactionID)
	if err != nil {
		return nil, &domainerrors.TransientStoreError{Op: "load transaction", Err: err}
	}
	rec := transferRecordFrom(entries)
	if rec == nil {
		return nil, domainerrors.ErrIdempotencyReused
	}
	if in != nil && (rec.SenderID != in.SenderID || rec.ReceiverID != in.ReceiverID ||
		rec.Amount != in.Amount || rec.Type != in.Type) {
		return nil, domainerrors.ErrIdempotencyReused
	}
	rec.Replayed = true
	metrics.RecordIdempotencyHit("ledger")
	return rec, nil
}

// transferRecordFrom finds the debit/credit pair among the entries of one transaction
func transferRecordFrom(entries []*entities.LedgerEntry) *entities.TransferRecord {
	var debit, credit *entities.LedgerEntry
	for _, entry := range entries {
		if entry.Amount < 0 && entry.Status == entities.EntryStatusCompleted && entry.Type.IsTransfer() {
			debit = entry
			break
		}
	}
	if debit == nil {
		return nil
	}
	for _, entry := range entries {
		if entry.RelatedEntryID != nil && *entry.RelatedEntryID == debit.ID && entry.Amount > 0 {
			credit = entry
			break
		}
	}
	if credit == nil {
		return nil
	}
	return &entities.TransferRecord{
		TransactionID:      debit.TransactionID,
		DebitEntryID:       debit.ID,
		CreditEntryID:      credit.ID,
		SenderID:           debit.UserID,
		ReceiverID:         credit.UserID,
		Amount:             -debit.Amount,
		Type:               debit.Type,
		Metadata:           debit.Metadata,
		NewSenderBalance:   debit.BalanceAfter,
		NewReceiverBalance: credit.BalanceAfter,
		CreatedAt:          debit.CreatedAt,
	}
}

// RecordSystemEntry writes a single-sided entry such as a referral bonus or a payout
func (e *TransferEngine) RecordSystemEntry(ctx context.Context, in *entities.SystemEntryInput) (rec *entities.SystemEntryRecord, err error) {
	start := time.Now()
	defer func() { observe("system_entry", start, rec != nil && rec.Replayed, err) }()

	switch {
	case in.IdempotencyKey == "":
		return nil, domainerrors.NewValidationError("idempotencyKey", "is required")
	case in.UserID == uuid.Nil:
		return nil, domainerrors.NewValidationError("userId", "is required")
	case in.Amount == 0:
		return nil, domainerrors.NewValidationError("amount", "must not be zero")
	case !in.Type.IsSystemRecordable():
		return nil, domainerrors.NewValidationError("type", fmt.Sprintf("%q is not a system entry type", in.Type))
	case !entities.MetadataMatches(in.Type, in.Metadata):
		return nil, domainerrors.NewValidationError("metadata", fmt.Sprintf("does not match type %q", in.Type))
	}

	if prior, err := e.priorEntry(ctx, in.IdempotencyKey); err != nil || prior != nil {
		if err != nil {
			return nil, err
		}
		return replaySystemEntry(prior, in)
	}

	err = e.uow.Do(ctx, func(txCtx context.Context) error {
		var wallet *entities.Wallet
		var txErr error
		if in.Amount > 0 {
			if txErr = e.walletRepo.EnsureWallet(txCtx, in.UserID); txErr != nil {
				return txErr
			}
			wallet, txErr = e.walletRepo.Credit(txCtx, in.UserID, in.Amount)
		} else {
			locked, lockErr := e.walletRepo.LockWallets(txCtx, in.UserID)
			if lockErr != nil {
				return lockErr
			}
			if available := locked[in.UserID].Available(); available < -in.Amount {
				return &domainerrors.InsufficientFundsError{Required: -in.Amount, Available: available}
			}
			wallet, txErr = e.walletRepo.Debit(txCtx, in.UserID, -in.Amount)
		}
		if txErr != nil {
			return txErr
		}

		entry := &entities.LedgerEntry{
			UserID:         in.UserID,
			Amount:         in.Amount,
			Type:           in.Type,
			Status:         entities.EntryStatusCompleted,
			Description:    in.Description,
			IdempotencyKey: null.StringFrom(in.IdempotencyKey),
			BalanceAfter:   wallet.Balance,
			Metadata:       in.Metadata,
			CreatedAt:      e.now(),
		}
		id, txErr := e.ledgerRepo.Append(txCtx, entry)
		if txErr != nil {
			return txErr
		}
		rec = &entities.SystemEntryRecord{
			TransactionID: id,
			UserID:        in.UserID,
			Amount:        in.Amount,
			Type:          in.Type,
			NewBalance:    wallet.Balance,
			CreatedAt:     entry.CreatedAt,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateIdemKey) {
			return e.replaySystemEntryAfterRace(ctx, in)
		}
		return nil, classify("system entry", err)
	}

	if e.effects != nil {
		e.effects.AfterSystemEntry(ctx, rec)
	}
	return rec, nil
}

func (e *TransferEngine) replaySystemEntryAfterRace(ctx context.Context, in *entities.SystemEntryInput) (*entities.SystemEntryRecord, error) {
	prior, err := e.ledgerRepo.FindByIdempotencyKey(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, &domainerrors.TransientStoreError{Op: "load winning entry", Err: err}
	}
	return replaySystemEntry(prior, in)
}

func replaySystemEntry(prior *entities.LedgerEntry, in *entities.SystemEntryInput) (*entities.SystemEntryRecord, error) {
	if prior.UserID != in.UserID || prior.Amount != in.Amount || prior.Type != in.Type {
		return nil, domainerrors.ErrIdempotencyReused
	}
	metrics.RecordIdempotencyHit("ledger")
	return &entities.SystemEntryRecord{
		TransactionID: prior.TransactionID,
		UserID:        prior.UserID,
		Amount:        prior.Amount,
		Type:          prior.Type,
		NewBalance:    prior.BalanceAfter,
		Replayed:      true,
		CreatedAt:     prior.CreatedAt,
	}, nil
}

// Purchase unlocks an asset for the buyer, paying the creator unless access is free
func (e *TransferEngine) Purchase(ctx context.Context, in *entities.PurchaseInput) (res *entities.PurchaseResult, err error) {
	start := time.Now()
	defer func() { observe("purchase", start, res != nil && res.Replayed, err) }()

	switch {
	case in.IdempotencyKey == "":
		return nil, domainerrors.NewValidationError("idempotencyKey", "is required")
	case in.BuyerID == uuid.Nil:
		return nil, domainerrors.NewValidationError("buyerId", "is required")
	case in.AssetID == uuid.Nil:
		return nil, domainerrors.NewValidationError("assetId", "is required")
	}

	asset, err := e.assetRepo.GetByID(ctx, in.AssetID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
		return nil, &domainerrors.TransientStoreError{Op: "load asset", Err: err}
	}

	if prior, err := e.priorEntry(ctx, in.IdempotencyKey); err != nil || prior != nil {
		if err != nil {
			return nil, err
		}
		return e.replayPurchase(ctx, prior, asset, in)
	}
	if res, err := e.existingGrant(ctx, asset, in.BuyerID); res != nil || err != nil {
		return res, err
	}

	if asset.IsFreeFor(in.BuyerID) {
		res, err = e.grantFree(ctx, asset, in)
	} else {
		res, err = e.purchasePaid(ctx, asset, in)
	}
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrDuplicateIdemKey):
			prior, findErr := e.ledgerRepo.FindByIdempotencyKey(ctx, in.IdempotencyKey)
			if findErr != nil {
				return nil, &domainerrors.TransientStoreError{Op: "load winning entry", Err: findErr}
			}
			return e.replayPurchase(ctx, prior, asset, in)
		case errors.Is(err, domainerrors.ErrAlreadyExists):
			// another request unlocked the asset first; this one was rolled back
			return e.existingGrant(ctx, asset, in.BuyerID)
		}
		return nil, classify("purchase", err)
	}

	if res.Transfer != nil {
		e.afterTransfer(ctx, res.Transfer)
	}
	return res, nil
}

func (e *TransferEngine) grantFree(ctx context.Context, asset *entities.Asset, in *entities.PurchaseInput) (*entities.PurchaseResult, error) {
	reason := "free"
	if asset.CreatorID == in.BuyerID {
		reason = "creator"
	}

	var res *entities.PurchaseResult
	err := e.uow.Do(ctx, func(txCtx context.Context) error {
		balance, err := e.walletRepo.GetBalance(txCtx, in.BuyerID)
		if err != nil {
			return err
		}
		entry := &entities.LedgerEntry{
			UserID:         in.BuyerID,
			Amount:         0,
			Type:           entities.EntryTypeFreeAccess,
			Status:         entities.EntryStatusCompleted,
			Description:    asset.Title,
			IdempotencyKey: null.StringFrom(in.IdempotencyKey),
			BalanceAfter:   balance,
			Metadata:       entities.FreeAccessMetadata{AssetID: asset.ID, Reason: reason},
			CreatedAt:      e.now(),
		}
		id, err := e.ledgerRepo.Append(txCtx, entry)
		if err != nil {
			return err
		}
		if err := e.assetRepo.GrantAccess(txCtx, &entities.AssetUnlock{
			AssetID:       asset.ID,
			UserID:        in.BuyerID,
			TransactionID: id,
			CreatedAt:     entry.CreatedAt,
		}); err != nil {
			return err
		}
		res = &entities.PurchaseResult{
			AssetID:       asset.ID,
			BuyerID:       in.BuyerID,
			FreeAccess:    true,
			TransactionID: id,
			NewBalance:    balance,
		}
		return nil
	})
	return res, err
}

func (e *TransferEngine) purchasePaid(ctx context.Context, asset *entities.Asset, in *entities.PurchaseInput) (*entities.PurchaseResult, error) {
	transfer := &entities.TransferInput{
		SenderID:       in.BuyerID,
		ReceiverID:     asset.CreatorID,
		Amount:         asset.Price,
		Type:           entities.EntryTypePPVUnlock,
		Description:    asset.Title,
		IdempotencyKey: in.IdempotencyKey,
		Metadata:       entities.UnlockMetadata{AssetID: asset.ID},
	}

	var res *entities.PurchaseResult
	err := e.uow.Do(ctx, func(txCtx context.Context) error {
		rec, err := e.transferTx(txCtx, transfer, nil)
		if err != nil {
			return err
		}
		if err := e.assetRepo.GrantAccess(txCtx, &entities.AssetUnlock{
			AssetID:       asset.ID,
			UserID:        in.BuyerID,
			TransactionID: rec.TransactionID,
			CreatedAt:     rec.CreatedAt,
		}); err != nil {
			return err
		}
		res = &entities.PurchaseResult{
			AssetID:       asset.ID,
			BuyerID:       in.BuyerID,
			TransactionID: rec.TransactionID,
			Transfer:      rec,
			NewBalance:    rec.NewSenderBalance,
		}
		return nil
	})
	return res, err
}

// existingGrant returns the current access grant as a replay, or nil when the buyer has none
func (e *TransferEngine) existingGrant(ctx context.Context, asset *entities.Asset, buyerID uuid.UUID) (*entities.PurchaseResult, error) {
	unlock, err := e.assetRepo.GetUnlock(ctx, asset.ID, buyerID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, &domainerrors.TransientStoreError{Op: "load access grant", Err: err}
	}
	balance, err := e.walletRepo.GetBalance(ctx, buyerID)
	if err != nil {
		return nil, &domainerrors.TransientStoreError{Op: "load balance", Err: err}
	}
	return &entities.PurchaseResult{
		AssetID:       asset.ID,
		BuyerID:       buyerID,
		FreeAccess:    asset.IsFreeFor(buyerID),
		TransactionID: unlock.TransactionID,
		NewBalance:    balance,
		Replayed:      true,
	}, nil
}

func (e *TransferEngine) replayPurchase(ctx context.Context, prior *entities.LedgerEntry, asset *entities.Asset, in *entities.PurchaseInput) (*entities.PurchaseResult, error) {
	if prior.UserID != in.BuyerID {
		return nil, domainerrors.ErrIdempotencyReused
	}
	switch meta := prior.Metadata.(type) {
	case entities.FreeAccessMetadata:
		if meta.AssetID != asset.ID {
			return nil, domainerrors.ErrIdempotencyReused
		}
		metrics.RecordIdempotencyHit("ledger")
		return &entities.PurchaseResult{
			AssetID:       asset.ID,
			BuyerID:       in.BuyerID,
			FreeAccess:    true,
			TransactionID: prior.TransactionID,
			NewBalance:    prior.BalanceAfter,
			Replayed:      true,
		}, nil
	case entities.UnlockMetadata:
		if meta.AssetID != asset.ID {
			return nil, domainerrors.ErrIdempotencyReused
		}
		rec, err := e.replayTransfer(ctx, prior, nil)
		if err != nil {
			return nil, err
		}
		return &entities.PurchaseResult{
			AssetID:       asset.ID,
			BuyerID:       in.BuyerID,
			TransactionID: rec.TransactionID,
			Transfer:      rec,
			NewBalance:    rec.NewSenderBalance,
			Replayed:      true,
		}, nil
	}
	return nil, domainerrors.ErrIdempotencyReused
}

// PlaceHold reserves coins without moving them. The hold is a pending ledger entry.
func (e *TransferEngine) PlaceHold(ctx context.Context, in *entities.HoldInput) (hold *entities.Hold, err error) {
	start := time.Now()
	defer func() { observe("hold", start, hold != nil && hold.Replayed, err) }()

	if in.Type == "" {
		in.Type = entities.EntryTypeMessage
	}
	switch {
	case in.IdempotencyKey == "":
		return nil, domainerrors.NewValidationError("idempotencyKey", "is required")
	case in.UserID == uuid.Nil:
		return nil, domainerrors.NewValidationError("userId", "is required")
	case in.Amount <= 0:
		return nil, domainerrors.NewValidationError("amount", "must be positive")
	case !in.Type.IsTransfer():
		return nil, domainerrors.NewValidationError("type", fmt.Sprintf("%q is not a transfer type", in.Type))
	}

	if prior, err := e.priorEntry(ctx, in.IdempotencyKey); err != nil || prior != nil {
		if err != nil {
			return nil, err
		}
		return e.replayHold(ctx, prior, in)
	}

	err = e.uow.Do(ctx, func(txCtx context.Context) error {
		locked, err := e.walletRepo.LockWallets(txCtx, in.UserID)
		if err != nil {
			return err
		}
		if available := locked[in.UserID].Available(); available < in.Amount {
			return &domainerrors.InsufficientFundsError{Required: in.Amount, Available: available}
		}
		wallet, err := e.walletRepo.Hold(txCtx, in.UserID, in.Amount)
		if err != nil {
			return err
		}

		now := e.now()
		expiresAt := now.Add(e.holdTTL)
		entry := &entities.LedgerEntry{
			UserID:         in.UserID,
			Amount:         -in.Amount,
			Type:           in.Type,
			Status:         entities.EntryStatusPending,
			Description:    in.Purpose,
			IdempotencyKey: null.StringFrom(in.IdempotencyKey),
			BalanceAfter:   wallet.Balance,
			Metadata:       entities.HoldMetadata{Purpose: in.Purpose, ExpiresAt: expiresAt},
			CreatedAt:      now,
		}
		id, err := e.ledgerRepo.Append(txCtx, entry)
		if err != nil {
			return err
		}
		hold = &entities.Hold{
			ID:        id,
			UserID:    in.UserID,
			Amount:    in.Amount,
			Type:      in.Type,
			Status:    entities.EntryStatusPending,
			Purpose:   in.Purpose,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateIdemKey) {
			prior, findErr := e.ledgerRepo.FindByIdempotencyKey(ctx, in.IdempotencyKey)
			if findErr != nil {
				return nil, &domainerrors.TransientStoreError{Op: "load winning entry", Err: findErr}
			}
			return e.replayHold(ctx, prior, in)
		}
		return nil, classify("hold", err)
	}
	return hold, nil
}

func (e *TransferEngine) replayHold(ctx context.Context, prior *entities.LedgerEntry, in *entities.HoldInput) (*entities.Hold, error) {
	if prior.Status != entities.EntryStatusPending || prior.UserID != in.UserID || -prior.Amount != in.Amount {
		return nil, domainerrors.ErrIdempotencyReused
	}
	hold, err := e.holdFromEntry(ctx, prior)
	if err != nil {
		return nil, err
	}
	hold.Replayed = true
	metrics.RecordIdempotencyHit("ledger")
	return hold, nil
}

// GetHold returns a hold with its settlement state
func (e *TransferEngine) GetHold(ctx context.Context, holdID uuid.UUID) (*entities.Hold, error) {
	entry, err := e.loadHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	return e.holdFromEntry(ctx, entry)
}

func (e *TransferEngine) loadHold(ctx context.Context, holdID uuid.UUID) (*entities.LedgerEntry, error) {
	entry, err := e.ledgerRepo.FindByID(ctx, holdID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
		return nil, &domainerrors.TransientStoreError{Op: "load hold", Err: err}
	}
	if entry.Status != entities.EntryStatusPending {
		return nil, domainerrors.ErrNotFound
	}
	return entry, nil
}

func (e *TransferEngine) holdFromEntry(ctx context.Context, entry *entities.LedgerEntry) (*entities.Hold, error) {
	hold := &entities.Hold{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Amount:    -entry.Amount,
		Type:      entry.Type,
		Status:    entities.EntryStatusPending,
		CreatedAt: entry.CreatedAt,
	}
	if meta, ok := entry.Metadata.(entities.HoldMetadata); ok {
		hold.Purpose = meta.Purpose
		hold.ExpiresAt = meta.ExpiresAt
	}

	settlement, err := e.ledgerRepo.FindByIdempotencyKey(ctx, entities.SettlementKey(entry.ID))
	switch {
	case errors.Is(err, domainerrors.ErrNotFound):
	case err != nil:
		return nil, &domainerrors.TransientStoreError{Op: "load settlement", Err: err}
	case settlement.Type == entities.EntryTypeHoldRelease:
		hold.Status = entities.EntryStatusReversed
	default:
		hold.Status = entities.EntryStatusCompleted
	}
	return hold, nil
}

// CaptureHold settles a hold by paying the held coins to the receiver
func (e *TransferEngine) CaptureHold(ctx context.Context, in *entities.CaptureInput) (rec *entities.TransferRecord, err error) {
	start := time.Now()
	defer func() { observe("capture", start, rec != nil && rec.Replayed, err) }()

	hold, err := e.loadHold(ctx, in.HoldID)
	if err != nil {
		return nil, err
	}

	transfer := &entities.TransferInput{
		SenderID:       hold.UserID,
		ReceiverID:     in.ReceiverID,
		Amount:         -hold.Amount,
		Type:           in.Type,
		Description:    in.Description,
		IdempotencyKey: entities.SettlementKey(hold.ID),
		Metadata:       in.Metadata,
	}
	if transfer.Type == "" {
		transfer.Type = hold.Type
	}
	if transfer.Description == "" {
		transfer.Description = hold.Description
	}

	if prior, err := e.priorEntry(ctx, transfer.IdempotencyKey); err != nil || prior != nil {
		if err != nil {
			return nil, err
		}
		return e.replayCapture(ctx, prior, transfer)
	}
	if err := e.validateTransfer(ctx, transfer); err != nil {
		return nil, err
	}

	err = e.uow.Do(ctx, func(txCtx context.Context) error {
		var txErr error
		rec, txErr = e.transferTx(txCtx, transfer, hold)
		return txErr
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateIdemKey) {
			return e.replayAfterRace(ctx, transfer.IdempotencyKey, func(prior *entities.LedgerEntry) (*entities.TransferRecord, error) {
				return e.replayCapture(ctx, prior, transfer)
			})
		}
		return nil, classify("capture", err)
	}

	e.afterTransfer(ctx, rec)
	return rec, nil
}

func (e *TransferEngine) replayCapture(ctx context.Context, prior *entities.LedgerEntry, in *entities.TransferInput) (*entities.TransferRecord, error) {
	if prior.Type == entities.EntryTypeHoldRelease {
		return nil, domainerrors.ErrAlreadySettled
	}
	rec, err := e.replayTransfer(ctx, prior, in)
	if errors.Is(err, domainerrors.ErrIdempotencyReused) {
		return nil, domainerrors.ErrAlreadySettled
	}
	return rec, err
}

// ReleaseHold gives the held coins back to the available balance
func (e *TransferEngine) ReleaseHold(ctx context.Context, holdID uuid.UUID, reason string) (hold *entities.Hold, err error) {
	start := time.Now()
	defer func() { observe("release", start, hold != nil && hold.Replayed, err) }()

	entry, err := e.loadHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	key := entities.SettlementKey(entry.ID)

	if prior, err := e.priorEntry(ctx, key); err != nil || prior != nil {
		if err != nil {
			return nil, err
		}
		return e.replayRelease(ctx, entry, prior)
	}

	err = e.uow.Do(ctx, func(txCtx context.Context) error {
		if _, err := e.walletRepo.LockWallets(txCtx, entry.UserID); err != nil {
			return err
		}
		wallet, err := e.walletRepo.ReleaseHold(txCtx, entry.UserID, -entry.Amount)
		if err != nil {
			return err
		}
		_, err = e.ledgerRepo.Append(txCtx, &entities.LedgerEntry{
			UserID:         entry.UserID,
			Amount:         0,
			Type:           entities.EntryTypeHoldRelease,
			Status:         entities.EntryStatusReversed,
			Description:    reason,
			IdempotencyKey: null.StringFrom(key),
			RelatedEntryID: &entry.ID,
			BalanceAfter:   wallet.Balance,
			Metadata:       entities.HoldMetadata{Purpose: reason},
			CreatedAt:      e.now(),
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateIdemKey) {
			prior, findErr := e.ledgerRepo.FindByIdempotencyKey(ctx, key)
			if findErr != nil {
				return nil, &domainerrors.TransientStoreError{Op: "load winning entry", Err: findErr}
			}
			return e.replayRelease(ctx, entry, prior)
		}
		return nil, classify("release", err)
	}
	return e.holdFromEntry(ctx, entry)
}

func (e *TransferEngine) replayRelease(ctx context.Context, entry, prior *entities.LedgerEntry) (*entities.Hold, error) {
	if prior.Type != entities.EntryTypeHoldRelease {
		return nil, domainerrors.ErrAlreadySettled
	}
	hold, err := e.holdFromEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	hold.Replayed = true
	return hold, nil
}

// Reverse writes inverse entries for every entry of the transaction that
// contains entryID. The original entries are left untouched.
func (e *TransferEngine) Reverse(ctx context.Context, in *entities.ReverseInput) (rec *entities.ReversalRecord, err error) {
	start := time.Now()
	defer func() { observe("reversal", start, rec != nil && rec.Replayed, err) }()

	entry, err := e.ledgerRepo.FindByID(ctx, in.EntryID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
		return nil, &domainerrors.TransientStoreError{Op: "load entry", Err: err}
	}
	originals, err := e.ledgerRepo.FindByTransactionID(ctx, entry.TransactionID)
	if err != nil {
		return nil, &domainerrors.TransientStoreError{Op: "load transaction", Err: err}
	}
	for _, original := range originals {
		if original.Status != entities.EntryStatusCompleted || original.Amount == 0 {
			return nil, domainerrors.ErrNotReversible
		}
	}

	key := entities.ReversalKey(entry.TransactionID)
	if prior, err := e.priorEntry(ctx, key); err != nil || prior != nil {
		if err != nil {
			return nil, err
		}
		return e.replayReversal(ctx, prior, entry.TransactionID)
	}

	err = e.uow.Do(ctx, func(txCtx context.Context) error {
		var txErr error
		rec, txErr = e.reverseTx(txCtx, in, entry.TransactionID, originals, key)
		return txErr
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateIdemKey) {
			prior, findErr := e.ledgerRepo.FindByIdempotencyKey(ctx, key)
			if findErr != nil {
				return nil, &domainerrors.TransientStoreError{Op: "load winning entry", Err: findErr}
			}
			return e.replayReversal(ctx, prior, entry.TransactionID)
		}
		return nil, classify("reversal", err)
	}
	return rec, nil
}

func (e *TransferEngine) reverseTx(ctx context.Context, in *entities.ReverseInput, txID uuid.UUID, originals []*entities.LedgerEntry, key string) (*entities.ReversalRecord, error) {
	userIDs := make([]uuid.UUID, 0, len(originals))
	for _, original := range originals {
		userIDs = append(userIDs, original.UserID)
	}
	locked, err := e.walletRepo.LockWallets(ctx, userIDs...)
	if err != nil {
		return nil, err
	}

	// inverse debits first so a receiver that already spent the coins fails before anything is credited
	ordered := make([]*entities.LedgerEntry, 0, len(originals))
	for _, original := range originals {
		if original.Amount > 0 {
			ordered = append(ordered, original)
		}
	}
	for _, original := range originals {
		if original.Amount < 0 {
			ordered = append(ordered, original)
		}
	}

	meta := entities.ReversalMetadata{OriginalTransactionID: txID, Reason: in.Reason, ActorID: in.ActorID}
	now := e.now()
	rec := &entities.ReversalRecord{OriginalTransactionID: txID}

	for _, original := range ordered {
		var wallet *entities.Wallet
		if original.Amount > 0 {
			if available := locked[original.UserID].Available(); available < original.Amount {
				return nil, &domainerrors.InsufficientFundsError{Required: original.Amount, Available: available}
			}
			wallet, err = e.walletRepo.Debit(ctx, original.UserID, original.Amount)
		} else {
			if err = e.walletRepo.EnsureWallet(ctx, original.UserID); err != nil {
				return nil, err
			}
			wallet, err = e.walletRepo.Credit(ctx, original.UserID, -original.Amount)
		}
		if err != nil {
			return nil, err
		}
		locked[original.UserID] = wallet

		originalID := original.ID
		inverse := &entities.LedgerEntry{
			TransactionID:  rec.TransactionID,
			UserID:         original.UserID,
			Amount:         -original.Amount,
			Type:           original.Type,
			Status:         entities.EntryStatusReversed,
			Description:    "reversal: " + in.Reason,
			RelatedEntryID: &originalID,
			BalanceAfter:   wallet.Balance,
			Metadata:       meta,
			CreatedAt:      now,
		}
		if rec.TransactionID == uuid.Nil {
			inverse.IdempotencyKey = null.StringFrom(key)
		}
		id, err := e.ledgerRepo.Append(ctx, inverse)
		if err != nil {
			return nil, err
		}
		if rec.TransactionID == uuid.Nil {
			rec.TransactionID = id
		}
		rec.Entries = append(rec.Entries, inverse)
	}
	return rec, nil
}

func (e *TransferEngine) replayReversal(ctx context.Context, prior *entities.LedgerEntry, txID uuid.UUID) (*entities.ReversalRecord, error) {
	entries, err := e.ledgerRepo.FindByTransactionID(ctx, prior.TransactionID)
	if err != nil {
		return nil, &domainerrors.TransientStoreError{Op: "load reversal", Err: err}
	}
	metrics.RecordIdempotencyHit("ledger")
	return &entities.ReversalRecord{
		TransactionID:         prior.TransactionID,
		OriginalTransactionID: txID,
		Entries:               entries,
		Replayed:              true,
	}, nil
}

// VerifyWallet compares the stored wallet against the sum of its ledger entries
func (e *TransferEngine) VerifyWallet(ctx context.Context, userID uuid.UUID) (*entities.WalletVerification, error) {
	v := &entities.WalletVerification{UserID: userID}

	wallet, err := e.walletRepo.GetByUserID(ctx, userID)
	switch {
	case errors.Is(err, domainerrors.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	default:
		v.StoredBalance = wallet.Balance
		v.StoredHeld = wallet.HeldBalance
	}

	if v.LedgerBalance, err = e.ledgerRepo.SumCommitted(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to sum ledger: %w", err)
	}
	if v.OpenHoldsAmount, err = e.ledgerRepo.SumOpenHolds(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to sum open holds: %w", err)
	}
	v.Consistent = v.StoredBalance == v.LedgerBalance && v.StoredHeld == v.OpenHoldsAmount
	if !v.Consistent {
		logger.Warn(ctx, "Wallet does not match ledger",
			zap.String("user_id", userID.String()),
			zap.Int64("stored_balance", v.StoredBalance),
			zap.Int64("ledger_balance", v.LedgerBalance),
			zap.Int64("stored_held", v.StoredHeld),
			zap.Int64("open_holds", v.OpenHoldsAmount),
		)
	}
	return v, nil
}

// priorEntry returns the entry already written under key, or nil
func (e *TransferEngine) priorEntry(ctx context.Context, key string) (*entities.LedgerEntry, error) {
	prior, err := e.ledgerRepo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, &domainerrors.TransientStoreError{Op: "lookup idempotency key", Err: err}
	}
	return prior, nil
}

// replayAfterRace handles losing the unique-index race to a concurrent request with the same key
func (e *TransferEngine) replayAfterRace(ctx context.Context, key string, replay func(*entities.LedgerEntry) (*entities.TransferRecord, error)) (*entities.TransferRecord, error) {
	logger.Info(ctx, "Idempotency key committed concurrently, replaying", zap.String("idempotency_key", key))
	prior, err := e.ledgerRepo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, &domainerrors.TransientStoreError{Op: "load winning entry", Err: err}
	}
	return replay(prior)
}

func (e *TransferEngine) afterTransfer(ctx context.Context, rec *entities.TransferRecord) {
	if e.effects != nil {
		e.effects.AfterTransfer(ctx, rec)
	}
}

// classify keeps business rejections as they are and marks everything else
// as a transient store failure. Nothing was committed in either case.
func classify(op string, err error) error {
	var funds *domainerrors.InsufficientFundsError
	var validation *domainerrors.ValidationError
	switch {
	case errors.As(err, &funds), errors.As(err, &validation),
		errors.Is(err, domainerrors.ErrNotFound),
		errors.Is(err, domainerrors.ErrHeldBalanceMissing),
		errors.Is(err, domainerrors.ErrIdempotencyReused),
		errors.Is(err, domainerrors.ErrAlreadySettled),
		errors.Is(err, domainerrors.ErrNotReversible),
		errors.Is(err, domainerrors.ErrTransientStore):
		return err
	}
	return &domainerrors.TransientStoreError{Op: op, Err: err}
}

func observe(op string, start time.Time, replayed bool, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil && replayed:
		outcome = metrics.OutcomeReplayed
	case errors.Is(err, domainerrors.ErrInsufficientFunds):
		outcome = metrics.OutcomeInsufficient
	case errors.Is(err, domainerrors.ErrTransientStore):
		outcome = metrics.OutcomeError
	case err != nil:
		outcome = metrics.OutcomeRejected
	}
	metrics.RecordLedgerOperation(op, outcome, time.Since(start))
}
