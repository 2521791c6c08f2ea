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

type transferService interface {
	Transfer(ctx context.Context, in *entities.TransferInput) (*entities.TransferRecord, error)
	Purchase(ctx context.Context, in *entities.PurchaseInput) (*entities.PurchaseResult, error)
}

// TransferHandler handles coin transfers and purchases
type TransferHandler struct {
	engine transferService
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(engine *usecases.TransferEngine) *TransferHandler {
	return &TransferHandler{engine: engine}
}

type createTransferRequest struct {
	ReceiverID  uuid.UUID       `json:"receiverId"`
	Amount      int64           `json:"amount"`
	Type        string          `json:"type" binding:"required"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata"`
}

// CreateTransfer moves coins from the caller to a receiver
// POST /api/v1/transfers
func (h *TransferHandler) CreateTransfer(c *gin.Context) {
	var input createTransferRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	entryType := entities.EntryType(input.Type)
	meta, ok := decodeMetadata(c, entryType, input.Metadata)
	if !ok {
		return
	}

	rec, err := h.engine.Transfer(c.Request.Context(), &entities.TransferInput{
		SenderID:       userID,
		ReceiverID:     input.ReceiverID,
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
	response.Success(c, http.StatusCreated, gin.H{"transfer": rec})
}

// Purchase unlocks an asset for the caller
// POST /api/v1/assets/:id/purchase
func (h *TransferHandler) Purchase(c *gin.Context) {
	assetID, ok := parseIDParam(c, "id", "asset")
	if !ok {
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	res, err := h.engine.Purchase(c.Request.Context(), &entities.PurchaseInput{
		BuyerID:        userID,
		AssetID:        assetID,
		IdempotencyKey: middleware.GetLedgerKey(c),
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Asset not found"))
			return
		}
		response.Error(c, err)
		return
	}

	middleware.MarkReplayed(c, res.Replayed)
	response.Success(c, http.StatusOK, gin.H{"purchase": res})
}
