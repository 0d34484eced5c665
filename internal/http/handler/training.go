package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/http/dto"
	"LookTrainer/internal/usecase"
)

type SessionService interface {
	Open(ctx context.Context, req usecase.OpenRequest) (usecase.OpenResult, error)
	Status(ctx context.Context, sessionID string) (usecase.StatusResult, error)
	ListQueue(ctx context.Context) ([]domain.Item, error)
}

type FeedbackService interface {
	Record(ctx context.Context, req usecase.FeedbackRequest) error
}

type RulesService interface {
	Compile(ctx context.Context) (domain.CompiledRuleset, error)
}

type RulesLookup interface {
	Get(version int64) (domain.CompiledRuleset, bool)
}

type TrainingHandler struct {
	sessions SessionService
	feedback FeedbackService
	rules    RulesService
	versions RulesLookup
	logger   *slog.Logger
	now      func() time.Time
}

func NewTrainingHandler(sessions SessionService, feedback FeedbackService, rules RulesService, versions RulesLookup, logger *slog.Logger) *TrainingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingHandler{
		sessions: sessions,
		feedback: feedback,
		rules:    rules,
		versions: versions,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *TrainingHandler) OpenSession(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.OpenSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.WarnContext(ctx, "invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, dto.ToErrorResponse(domain.KindInvalidRequest, err.Error()))
			return
		}
	}

	res, err := h.sessions.Open(ctx, usecase.OpenRequest{ReviewType: req.ReviewType, SyncTimestamp: req.SyncTimestamp})
	if err != nil {
		h.fail(c, "open review session failed", err)
		return
	}

	c.JSON(http.StatusOK, dto.ToOpenSessionResponse(res, h.now().UTC()))
}

func (h *TrainingHandler) ReviewStatus(c *gin.Context) {
	res, err := h.sessions.Status(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		h.fail(c, "review status failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.ToStatusResponse(res))
}

func (h *TrainingHandler) Feedback(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, dto.ToErrorResponse(domain.KindInvalidRequest, err.Error()))
		return
	}

	err := h.feedback.Record(ctx, usecase.FeedbackRequest{
		ItemID:   string(req.ImageID),
		Approved: req.Approved,
		Reason:   req.Reason,
	})
	if err != nil {
		h.fail(c, "record feedback failed", err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Success: true, Message: "Training feedback processed successfully"})
}

func (h *TrainingHandler) Queue(c *gin.Context) {
	items, err := h.sessions.ListQueue(c.Request.Context())
	if err != nil {
		h.fail(c, "list queue failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.QueueResponse{Success: true, Images: items})
}

func (h *TrainingHandler) CompileRules(c *gin.Context) {
	rules, err := h.rules.Compile(c.Request.Context())
	if err != nil {
		h.fail(c, "compile rules failed", err)
		return
	}
	c.JSON(http.StatusOK, dto.RulesResponse{Success: true, Rules: rules})
}

func (h *TrainingHandler) RulesVersion(c *gin.Context) {
	version, err := strconv.ParseInt(c.Param("version"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ToErrorResponse(domain.KindInvalidRequest, "version must be an integer"))
		return
	}
	if h.versions == nil {
		c.JSON(http.StatusNotFound, dto.ToErrorResponse(domain.KindNotFound, "ruleset history is disabled"))
		return
	}
	rules, ok := h.versions.Get(version)
	if !ok {
		c.JSON(http.StatusNotFound, dto.ToErrorResponse(domain.KindNotFound, "ruleset version not found"))
		return
	}
	c.JSON(http.StatusOK, dto.RulesResponse{Success: true, Rules: rules})
}

func (h *TrainingHandler) fail(c *gin.Context, msg string, err error) {
	ctx := c.Request.Context()
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if kind == "" {
		kind = domain.KindInternal
	}

	message := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		message = de.Msg
	}

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, "kind", kind, "error", err)
	} else {
		h.logger.InfoContext(ctx, msg, "kind", kind, "error", err)
	}
	c.JSON(status, dto.ToErrorResponse(kind, message))
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
