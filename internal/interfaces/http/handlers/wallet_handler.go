package handlers

import (
	"context"
	"errors"
	"net/http"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/interfaces/http/middleware"
	"coin-ledger.backend/internal/interfaces/http/response"
	"coin-ledger.backend/internal/usecases"
	"coin-ledger.backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type walletService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (*entities.WalletView, error)
	ListEntries(ctx context.Context, userID uuid.UUID, pagination utils.PaginationParams) ([]*entities.LedgerEntry, utils.PaginationMeta, error)
	GetTransaction(ctx context.Context, requesterID uuid.UUID, isAdmin bool, transactionID uuid.UUID) ([]*entities.LedgerEntry, error)
	ListNotifications(ctx context.Context, userID uuid.UUID, pagination utils.PaginationParams) ([]*entities.Notification, utils.PaginationMeta, error)
}

// WalletHandler handles balance and history endpoints
type WalletHandler struct {
	walletUsecase walletService
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletUsecase *usecases.WalletUsecase) *WalletHandler {
	return &WalletHandler{walletUsecase: walletUsecase}
}

// GetWallet returns balance, held balance and available balance of the caller
// GET /api/v1/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	wallet, err := h.walletUsecase.GetWallet(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"wallet": wallet})
}

// ListEntries lists the caller's ledger entries
// GET /api/v1/wallet/entries
func (h *WalletHandler) ListEntries(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	entries, meta, err := h.walletUsecase.ListEntries(c.Request.Context(), userID, paginationFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if entries == nil {
		entries = []*entities.LedgerEntry{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"items": entries,
		"meta":  meta,
	})
}

// GetTransaction returns all entries of one transaction
// GET /api/v1/transactions/:id
func (h *WalletHandler) GetTransaction(c *gin.Context) {
	txID, ok := parseIDParam(c, "id", "transaction")
	if !ok {
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	entries, err := h.walletUsecase.GetTransaction(c.Request.Context(), userID, middleware.IsAdmin(c), txID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) || errors.Is(err, domainerrors.ErrForbidden) {
			response.Error(c, domainerrors.NotFound("Transaction not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"transactionId": txID,
		"entries":       entries,
	})
}

// ListNotifications lists the caller's notifications
// GET /api/v1/notifications
func (h *WalletHandler) ListNotifications(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	items, meta, err := h.walletUsecase.ListNotifications(c.Request.Context(), userID, paginationFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if items == nil {
		items = []*entities.Notification{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"items": items,
		"meta":  meta,
	})
}
