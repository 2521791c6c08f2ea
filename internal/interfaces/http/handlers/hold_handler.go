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

type holdService interface {
	PlaceHold(ctx context.Context, in *entities.HoldInput) (*entities.Hold, error)
	GetHold(ctx context.Context, holdID uuid.UUID) (*entities.Hold, error)
	CaptureHold(ctx context.Context, in *entities.CaptureInput) (*entities.TransferRecord, error)
	ReleaseHold(ctx context.Context, holdID uuid.UUID, reason string) (*entities.Hold, error)
}

// HoldHandler handles escrow holds
type HoldHandler struct {
	engine holdService
}

// NewHoldHandler creates a new hold handler
func NewHoldHandler(engine *usecases.TransferEngine) *HoldHandler {
	return &HoldHandler{engine: engine}
}

type placeHoldRequest struct {
	Amount  int64  `json:"amount"`
	Type    string `json:"type"`
	Purpose string `json:"purpose"`
}

type captureHoldRequest struct {
	ReceiverID  uuid.UUID       `json:"receiverId"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata"`
}

type releaseHoldRequest struct {
	Reason string `json:"reason"`
}

// PlaceHold reserves part of the caller's balance
// POST /api/v1/holds
func (h *HoldHandler) PlaceHold(c *gin.Context) {
	var input placeHoldRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	hold, err := h.engine.PlaceHold(c.Request.Context(), &entities.HoldInput{
		UserID:         userID,
		Amount:         input.Amount,
		Type:           entities.EntryType(input.Type),
		Purpose:        input.Purpose,
		IdempotencyKey: middleware.GetLedgerKey(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.MarkReplayed(c, hold.Replayed)
	response.Success(c, http.StatusCreated, gin.H{"hold": hold})
}

// CaptureHold pays a hold to a receiver
// POST /api/v1/holds/:id/capture
func (h *HoldHandler) CaptureHold(c *gin.Context) {
	holdID, ok := parseIDParam(c, "id", "hold")
	if !ok {
		return
	}

	var input captureHoldRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	userID, ok := h.authorizeHold(c, holdID)
	if !ok {
		return
	}

	var meta entities.Metadata
	if len(input.Metadata) > 0 {
		entryType := entities.EntryType(input.Type)
		if entryType == "" {
			response.Error(c, domainerrors.NewValidationError("type", "is required with metadata"))
			return
		}
		if meta, ok = decodeMetadata(c, entryType, input.Metadata); !ok {
			return
		}
	}

	rec, err := h.engine.CaptureHold(c.Request.Context(), &entities.CaptureInput{
		HoldID:      holdID,
		ActorID:     userID,
		ReceiverID:  input.ReceiverID,
		Type:        entities.EntryType(input.Type),
		Description: input.Description,
		Metadata:    meta,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.MarkReplayed(c, rec.Replayed)
	response.Success(c, http.StatusOK, gin.H{"transfer": rec})
}

// ReleaseHold returns held coins to the caller's available balance
// POST /api/v1/holds/:id/release
func (h *HoldHandler) ReleaseHold(c *gin.Context) {
	holdID, ok := parseIDParam(c, "id", "hold")
	if !ok {
		return
	}

	var input releaseHoldRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			response.Error(c, domainerrors.BadRequest(err.Error()))
			return
		}
	}

	if _, ok := h.authorizeHold(c, holdID); !ok {
		return
	}

	hold, err := h.engine.ReleaseHold(c.Request.Context(), holdID, input.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.MarkReplayed(c, hold.Replayed)
	response.Success(c, http.StatusOK, gin.H{"hold": hold})
}

// authorizeHold lets only the holder or an admin settle a hold
func (h *HoldHandler) authorizeHold(c *gin.Context, holdID uuid.UUID) (uuid.UUID, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return uuid.Nil, false
	}

	hold, err := h.engine.GetHold(c.Request.Context(), holdID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Hold not found"))
			return uuid.Nil, false
		}
		response.Error(c, err)
		return uuid.Nil, false
	}
	if hold.UserID != userID && !middleware.IsAdmin(c) {
		response.Error(c, domainerrors.NotFound("Hold not found"))
		return uuid.Nil, false
	}
	return userID, true
}
