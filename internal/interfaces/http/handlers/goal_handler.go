package handlers

import (
	"context"
	"net/http"
	"strconv"

	"coin-ledger.backend/internal/domain/entities"
	domainerrors "coin-ledger.backend/internal/domain/errors"
	"coin-ledger.backend/internal/interfaces/http/response"
	"coin-ledger.backend/internal/usecases"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type goalService interface {
	CreateGoal(ctx context.Context, ownerID uuid.UUID, input *entities.CreateGoalInput) (*entities.Goal, error)
	ListGoals(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]*entities.Goal, error)
	Leaderboard(ctx context.Context, creatorID uuid.UUID, limit int) ([]*entities.SupporterTotal, error)
}

// GoalHandler handles creator goals and supporter leaderboards
type GoalHandler struct {
	goalUsecase goalService
}

// NewGoalHandler creates a new goal handler
func NewGoalHandler(goalUsecase *usecases.GoalUsecase) *GoalHandler {
	return &GoalHandler{goalUsecase: goalUsecase}
}

// CreateGoal creates a goal owned by the caller
// POST /api/v1/goals
func (h *GoalHandler) CreateGoal(c *gin.Context) {
	var input entities.CreateGoalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	userID, ok := requireUser(c)
	if !ok {
		return
	}

	goal, err := h.goalUsecase.CreateGoal(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"goal": goal})
}

// ListGoals lists goals of the caller, or of ?ownerId= when given
// GET /api/v1/goals
func (h *GoalHandler) ListGoals(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	ownerID := userID
	if raw := c.Query("ownerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid owner ID"))
			return
		}
		ownerID = id
	}
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))

	goals, err := h.goalUsecase.ListGoals(c.Request.Context(), ownerID, activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	if goals == nil {
		goals = []*entities.Goal{}
	}

	response.Success(c, http.StatusOK, gin.H{"goals": goals})
}

// Leaderboard lists the top supporters of a creator
// GET /api/v1/creators/:id/leaderboard
func (h *GoalHandler) Leaderboard(c *gin.Context) {
	creatorID, ok := parseIDParam(c, "id", "creator")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	top, err := h.goalUsecase.Leaderboard(c.Request.Context(), creatorID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	if top == nil {
		top = []*entities.SupporterTotal{}
	}

	response.Success(c, http.StatusOK, gin.H{"supporters": top})
}
