package handlers

import (
	"encoding/json"
	"strconv"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/interfaces/http/middleware"
	"coin-ledger.backend/internal/interfaces/http/response"
	"coin-ledger.backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("User not authenticated"))
		return uuid.Nil, false
	}
	return userID, true
}

func parseIDParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid "+label+" ID"))
		return uuid.Nil, false
	}
	return id, true
}

func decodeMetadata(c *gin.Context, entryType entities.EntryType, raw json.RawMessage) (entities.Metadata, bool) {
	meta, err := entities.DecodeMetadataFor(entryType, raw)
	if err != nil {
		response.Error(c, domainerrors.NewValidationError("metadata", "does not match the entry type"))
		return nil, false
	}
	return meta, true
}

func paginationFromQuery(c *gin.Context) utils.PaginationParams {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return utils.GetPaginationParams(page, limit)
}
