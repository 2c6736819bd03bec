package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tdhoang/prepwise/internal/apperr"
	"github.com/tdhoang/prepwise/internal/dto"
	"github.com/tdhoang/prepwise/internal/service"
)

type TestController struct {
	builderService   service.TestBuilderService
	answerService    service.AnswerService
	lifecycleService service.LifecycleService
}

func NewTestController(
	builderService service.TestBuilderService,
	answerService service.AnswerService,
	lifecycleService service.LifecycleService,
) *TestController {
	return &TestController{
		builderService:   builderService,
		answerService:    answerService,
		lifecycleService: lifecycleService,
	}
}

func parseTestID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test ID format"})
		return 0, false
	}
	return uint(id), true
}

// respondError maps the error taxonomy onto HTTP statuses. State errors carry
// their reason code and recommended action through to the client.
func respondError(ctx *gin.Context, err error) {
	if se, ok := apperr.AsStateError(err); ok {
		status := http.StatusConflict
		if se.Reason == apperr.ReasonSessionExpired {
			status = http.StatusGone
		}
		ctx.JSON(status, dto.ErrorResponse{
			Message:           se.Message,
			Reason:            se.Reason,
			RecommendedAction: string(se.Action),
		})
		return
	}
	switch {
	case errors.Is(err, apperr.ErrValidation):
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
	case errors.Is(err, apperr.ErrNotOwner):
		ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "You do not own this test"})
	case errors.Is(err, apperr.ErrInsufficientPool):
		ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: err.Error(), Reason: apperr.ReasonInsufficientPool})
	default:
		log.Error().Err(err).Str("path", ctx.FullPath()).Msg("Unexpected error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Internal server error"})
	}
}

// CreateTest godoc
// @Summary Create a new test
// @Description Builds a test from the requested filters, samples and shuffles questions, and opens the first session. Question options never include correctness.
// @Tags Tests
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param request body dto.CreateTestRequest true "Test configuration"
// @Success 201 {object} dto.CreateTestResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid filters or question count"
// @Failure 409 {object} dto.ErrorResponse "Insufficient question pool"
// @Router /tests [post]
func (c *TestController) CreateTest(ctx *gin.Context) {
	var req dto.CreateTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	resp, err := c.builderService.CreateTest(callerFrom(ctx), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// GetTest godoc
// @Summary Get a test with its client-safe question set
// @Tags Tests
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestDetailResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tests/{test_id} [get]
func (c *TestController) GetTest(ctx *gin.Context) {
	testID, ok := parseTestID(ctx)
	if !ok {
		return
	}
	resp, err := c.builderService.GetTestDetail(callerFrom(ctx), testID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SubmitAnswer godoc
// @Summary Submit or resubmit an answer
// @Description Idempotent per (test, question): resubmission overwrites in place and recomputes points.
// @Tags Tests
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param test_id path int true "Test ID"
// @Param request body dto.SubmitAnswerRequest true "Answer; omit selected_option_id to skip"
// @Success 200 {object} dto.SubmitAnswerResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Test completed or question not in test"
// @Router /tests/{test_id}/answers [post]
func (c *TestController) SubmitAnswer(ctx *gin.Context) {
	testID, ok := parseTestID(ctx)
	if !ok {
		return
	}
	var req dto.SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	resp, err := c.answerService.SubmitAnswer(callerFrom(ctx), testID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Heartbeat godoc
// @Summary Report session liveness
// @Description Validates the session token, refreshes the activity window, and lazily auto-pauses after prolonged inactivity (410).
// @Tags Tests
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param test_id path int true "Test ID"
// @Param request body dto.HeartbeatRequest true "Session token and progress snapshot"
// @Success 200 {object} dto.HeartbeatResponse
// @Failure 409 {object} dto.ErrorResponse "Stale session token"
// @Failure 410 {object} dto.ErrorResponse "Session expired from inactivity"
// @Router /tests/{test_id}/heartbeat [post]
func (c *TestController) Heartbeat(ctx *gin.Context) {
	testID, ok := parseTestID(ctx)
	if !ok {
		return
	}
	var req dto.HeartbeatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	resp, err := c.lifecycleService.Heartbeat(callerFrom(ctx), testID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Pause godoc
// @Summary Pause a live test
// @Tags Tests
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param test_id path int true "Test ID"
// @Param request body dto.PauseRequest true "Reason and progress snapshot"
// @Success 200 {object} dto.PauseResponse
// @Failure 409 {object} dto.ErrorResponse "Test already completed"
// @Router /tests/{test_id}/pause [post]
func (c *TestController) Pause(ctx *gin.Context) {
	testID, ok := parseTestID(ctx)
	if !ok {
		return
	}
	var req dto.PauseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	resp, err := c.lifecycleService.Pause(callerFrom(ctx), testID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Resume godoc
// @Summary Check or execute a resume
// @Description action=check evaluates the guards without mutation; action=resume performs the transition and returns a fresh session token.
// @Tags Tests
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param test_id path int true "Test ID"
// @Param request body dto.ResumeRequest true "check or resume"
// @Success 200 {object} dto.ResumeResponse
// @Failure 409 {object} dto.ErrorResponse "Guard failure with reason code"
// @Router /tests/{test_id}/resume [post]
func (c *TestController) Resume(ctx *gin.Context) {
	testID, ok := parseTestID(ctx)
	if !ok {
		return
	}
	var req dto.ResumeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	if req.Action == "check" {
		resp, err := c.lifecycleService.CheckResume(callerFrom(ctx), testID)
		if err != nil {
			respondError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, resp)
		return
	}

	resp, err := c.lifecycleService.Resume(callerFrom(ctx), testID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Complete godoc
// @Summary Complete a test
// @Description Terminal transition: recounts answers, applies the incomplete penalty, and pushes the leaderboard aggregate.
// @Tags Tests
// @Accept json
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param test_id path int true "Test ID"
// @Param request body dto.CompleteRequest true "Set auto=true with a reason for forced completion"
// @Success 200 {object} dto.CompleteResponse
// @Failure 409 {object} dto.ErrorResponse "Already completed"
// @Router /tests/{test_id}/complete [post]
func (c *TestController) Complete(ctx *gin.Context) {
	testID, ok := parseTestID(ctx)
	if !ok {
		return
	}
	var req dto.CompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}
	resp, err := c.lifecycleService.Complete(callerFrom(ctx), testID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Status godoc
// @Summary Get lifecycle status and recommended next action
// @Tags Tests
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.StatusResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tests/{test_id}/status [get]
func (c *TestController) Status(ctx *gin.Context) {
	testID, ok := parseTestID(ctx)
	if !ok {
		return
	}
	resp, err := c.lifecycleService.Status(callerFrom(ctx), testID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Results godoc
// @Summary Get the per-question breakdown of a completed test
// @Tags Tests
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.ResultsResponse
// @Failure 409 {object} dto.ErrorResponse "Test not completed yet"
// @Router /tests/{test_id}/results [get]
func (c *TestController) Results(ctx *gin.Context) {
	testID, ok := parseTestID(ctx)
	if !ok {
		return
	}
	resp, err := c.lifecycleService.Results(callerFrom(ctx), testID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
