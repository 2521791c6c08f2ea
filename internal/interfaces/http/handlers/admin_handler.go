package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/interfaces/http/middleware"
	"coin-ledger.backend/internal/interfaces/http/response"
	"coin-ledger.backend/internal/usecases"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ledgerAdminService interface {
	RecordSystemEntry(ctx context.Context, in *entities.SystemEntryInput) (*entities.SystemEntryRecord, error)
	Reverse(ctx context.Context, in *entities.ReverseInput) (*entities.ReversalRecord, error)
	VerifyWallet(ctx context.Context, userID uuid.UUID) (*entities.WalletVerification, error)
}

// AdminHandler handles operator endpoints
type AdminHandler struct {
	engine ledgerAdminService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(engine *usecases.TransferEngine) *AdminHandler {
	return &AdminHandler{engine: engine}
}

type systemEntryRequest struct {
	UserID      uuid.UUID       `json:"userId"`
	Amount      int64           `json:"amount"`
	Type        string          `json:"type" binding:"required"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata"`
}

type reverseRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RecordSystemEntry books a referral bonus, payout or adjustment
// POST /api/v1/admin/system-entries
func (h *AdminHandler) RecordSystemEntry(c *gin.Context) {
	var input systemEntryRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	entryType := entities.EntryType(input.Type)
	meta, ok := decodeMetadata(c, entryType, input.Metadata)
	if !ok {
		return
	}

	rec, err := h.engine.RecordSystemEntry(c.Request.Context(), &entities.SystemEntryInput{
		UserID:         input.UserID,
		Amount:         input.Amount,
		Type:           entryType,
		Description:    input.Description,
		IdempotencyKey: middleware.GetLedgerKey(c),
		Metadata:       meta,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.MarkReplayed(c, rec.Replayed)
	response.Success(c, http.StatusCreated, gin.H{"entry": rec})
}

// ReverseEntry writes the inverse of the transaction an entry belongs to
// POST /api/v1/admin/entries/:id/reverse
func (h *AdminHandler) ReverseEntry(c *gin.Context) {
	entryID, ok := parseIDParam(c, "id", "entry")
	if !ok {
		return
	}

	var input reverseRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	actorID, ok := requireUser(c)
	if !ok {
		return
	}

	rec, err := h.engine.Reverse(c.Request.Context(), &entities.ReverseInput{
		EntryID: entryID,
		Reason:  input.Reason,
		ActorID: actorID,
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Entry not found"))
			return
		}
		response.Error(c, err)
		return
	}

	middleware.MarkReplayed(c, rec.Replayed)
	response.Success(c, http.StatusCreated, gin.H{"reversal": rec})
}

// VerifyWallet reconciles a wallet row against the ledger
// GET /api/v1/admin/wallets/:userId/verify
func (h *AdminHandler) VerifyWallet(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId", "user")
	if !ok {
		return
	}

	v, err := h.engine.VerifyWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"verification": v})
}
