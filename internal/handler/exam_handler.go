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

// ExamHandler handles exam registry endpoints.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// CreateExam godoc
// POST /api/v1/staff/exams
// Registers a new exam for a (course, content) pair.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), &req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/staff/exams/:examID
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}
	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// UpdateExam godoc
// PATCH /api/v1/staff/exams/:examID
// Applies a partial update; only supplied fields change.
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), examID, &req)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// ListCourseExams godoc
// GET /api/v1/staff/courses/:courseID/exams?active_only=&proctored_only=
func (h *ExamHandler) ListCourseExams(c *gin.Context) {
	courseID := c.Param("courseID")
	activeOnly := c.Query("active_only") == "true"
	proctoredOnly := c.Query("proctored_only") == "true"

	exams, err := h.examService.ListForCourse(c.Request.Context(), courseID, activeOnly, proctoredOnly)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// parseID reads a positive integer path param, failing the request itself
// when the value is malformed.
func parseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, strconv.ErrSyntax
	}
	return id, nil
}
