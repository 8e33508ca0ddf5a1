package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/provigil/proctor-backend/internal/model"
	"github.com/provigil/proctor-backend/internal/response"
	"github.com/provigil/proctor-backend/internal/service"
	"github.com/provigil/proctor-backend/internal/validator"
)

// AllowanceHandler handles per-student override endpoints.
type AllowanceHandler struct {
	allowanceService *service.AllowanceService
}

// NewAllowanceHandler creates a new AllowanceHandler.
func NewAllowanceHandler(allowanceService *service.AllowanceService) *AllowanceHandler {
	return &AllowanceHandler{allowanceService: allowanceService}
}

// AddAllowance godoc
// PUT /api/v1/staff/exams/:examID/allowances
// Grants or replaces an allowance; the prior value is archived.
func (h *AllowanceHandler) AddAllowance(c *gin.Context) {
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}

	var req model.AddAllowanceRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	allowance, err := h.allowanceService.Add(c.Request.Context(), examID, &req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"allowance": allowance})
}

// RemoveAllowance godoc
// DELETE /api/v1/staff/exams/:examID/allowances/:userID/:key
// Removing a missing allowance succeeds quietly.
func (h *AllowanceHandler) RemoveAllowance(c *gin.Context) {
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.allowanceService.Remove(c.Request.Context(), examID, userID, c.Param("key")); err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ListUserAllowances godoc
// GET /api/v1/staff/exams/:examID/allowances/:userID
func (h *AllowanceHandler) ListUserAllowances(c *gin.Context) {
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	allowances, err := h.allowanceService.ListForUser(c.Request.Context(), examID, userID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"allowances": allowances})
}

// ListCourseAllowances godoc
// GET /api/v1/staff/courses/:courseID/allowances
func (h *AllowanceHandler) ListCourseAllowances(c *gin.Context) {
	courseID := c.Param("courseID")
	allowances, err := h.allowanceService.ListForCourse(c.Request.Context(), courseID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"allowances": allowances})
}
