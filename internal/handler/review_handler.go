package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/provigil/proctor-backend/internal/middleware"
	"github.com/provigil/proctor-backend/internal/model"
	"github.com/provigil/proctor-backend/internal/response"
	"github.com/provigil/proctor-backend/internal/service"
	"github.com/provigil/proctor-backend/internal/validator"
)

// maxCallbackBody bounds vendor callback payloads (1 MiB).
const maxCallbackBody = 1 << 20

// ReviewHandler handles the vendor review callback and the staff review
// edit surface.
type ReviewHandler struct {
	reviewService *service.ReviewService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviewService *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// ReviewCallback godoc
// POST /api/v1/callback/reviews/:attemptCode
// Server-to-server endpoint the proctoring vendor posts verdicts to.
// Unauthenticated by design; correlation is enforced against the
// attempt's stored external id inside the service.
func (h *ReviewHandler) ReviewCallback(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil || len(raw) == 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	review, err := h.reviewService.OnReviewCallback(c.Request.Context(), c.Param("attemptCode"), raw)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"review_status": review.ReviewStatus})
}

// GetReview godoc
// GET /api/v1/staff/reviews/:attemptCode
func (h *ReviewHandler) GetReview(c *gin.Context) {
	review, err := h.reviewService.GetByCode(c.Request.Context(), c.Param("attemptCode"))
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"review": review})
}

// SaveReview godoc
// PUT /api/v1/staff/reviews/:attemptCode
// Staff edit of a review verdict; the prior verdict is archived and the
// attempt's status is re-resolved.
func (h *ReviewHandler) SaveReview(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.SaveReviewRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	existing, err := h.reviewService.GetByCode(c.Request.Context(), c.Param("attemptCode"))
	if err != nil {
		failFromErr(c, err)
		return
	}

	review, err := h.reviewService.OnReviewSaved(c.Request.Context(), existing.ID, claims.UserID, &req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"review": review})
}
