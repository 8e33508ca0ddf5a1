package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/provigil/proctor-backend/internal/middleware"
	"github.com/provigil/proctor-backend/internal/model"
	"github.com/provigil/proctor-backend/internal/response"
	"github.com/provigil/proctor-backend/internal/service"
	"github.com/provigil/proctor-backend/internal/validator"
)

// AttemptHandler handles attempt lifecycle endpoints, both the student
// flow and the staff management surface.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// studentSettableStatuses are the transitions a learner may request
// directly. Starting goes through the start endpoint so the clock stamp
// stays in one place.
var studentSettableStatuses = map[model.AttemptStatus]bool{
	model.AttemptStatusDownloadClicked: true,
	model.AttemptStatusReadyToStart:    true,
	model.AttemptStatusReadyToSubmit:   true,
	model.AttemptStatusSubmitted:       true,
	model.AttemptStatusDeclined:        true,
	model.AttemptStatusError:           true,
}

// GetStudentView godoc
// GET /api/v1/student/exams/:examID
// Returns the learner's standing on an exam: stage, clock, download URL.
func (h *AttemptHandler) GetStudentView(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}

	view, err := h.attemptService.StudentView(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// CreateAttempt godoc
// POST /api/v1/student/exams/:examID/attempt
func (h *AttemptHandler) CreateAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}

	var req model.CreateAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.Create(c.Request.Context(), examID, claims.UserID, req.TakingAsProctored)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// StartAttempt godoc
// POST /api/v1/student/exams/:examID/attempt/start
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}

	attempt, err := h.attemptService.Start(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// StopAttempt godoc
// POST /api/v1/student/exams/:examID/attempt/stop
func (h *AttemptHandler) StopAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}

	attempt, err := h.attemptService.Stop(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// VendorStartPing godoc
// GET /api/v1/callback/attempts/:attemptCode/start
// The vendor's desktop client pings this once its lockdown environment is
// up, moving the attempt to ready_to_start. Unauthenticated; the attempt
// code is an unguessable UUID only the client was handed.
func (h *AttemptHandler) VendorStartPing(c *gin.Context) {
	attempt, err := h.attemptService.MarkReady(c.Request.Context(), c.Param("attemptCode"))
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": attempt.Status})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required,max=50"`
}

// UpdateStudentStatus godoc
// PUT /api/v1/student/exams/:examID/attempt/status
// Lets the learner advance their own attempt through the client-driven
// stages (software downloaded, ready, submit, decline, error).
func (h *AttemptHandler) UpdateStudentStatus(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}

	var req updateStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	to := model.AttemptStatus(req.Status)
	if !studentSettableStatuses[to] {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	existing, err := h.attemptService.GetForUser(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failFromErr(c, err)
		return
	}

	updated, err := h.attemptService.UpdateStatus(c.Request.Context(), existing.ID, to)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": updated})
}

// AcknowledgeStatus godoc
// POST /api/v1/student/exams/:examID/attempt/acknowledge
// Records that the learner has seen their terminal status.
func (h *AttemptHandler) AcknowledgeStatus(c *gin.Context) {
	claims := middleware.GetClaims(c)
	examID, err := parseID(c, "examID")
	if err != nil {
		return
	}

	if err := h.attemptService.Acknowledge(c.Request.Context(), examID, claims.UserID); err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// GetAttempt godoc
// GET /api/v1/staff/attempts/:attemptID
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID, err := parseID(c, "attemptID")
	if err != nil {
		return
	}
	attempt, err := h.attemptService.GetByID(c.Request.Context(), attemptID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetAttemptHistory godoc
// GET /api/v1/staff/attempts/:attemptID/history
// Returns the archived pre-images of an attempt, oldest first.
func (h *AttemptHandler) GetAttemptHistory(c *gin.Context) {
	attemptID, err := parseID(c, "attemptID")
	if err != nil {
		return
	}
	snapshots, err := h.attemptService.History(c.Request.Context(), attemptID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"history": snapshots})
}

// UpdateAttemptStatus godoc
// PUT /api/v1/staff/attempts/:attemptID/status
// Staff transition path; any valid status is accepted, subject to the
// one-way completed rule.
func (h *AttemptHandler) UpdateAttemptStatus(c *gin.Context) {
	attemptID, err := parseID(c, "attemptID")
	if err != nil {
		return
	}

	var req updateStatusRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.UpdateStatus(c.Request.Context(), attemptID, model.AttemptStatus(req.Status))
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// DeleteAttempt godoc
// DELETE /api/v1/staff/attempts/:attemptID
// Archives and removes an attempt, releasing the (user, exam) slot.
func (h *AttemptHandler) DeleteAttempt(c *gin.Context) {
	attemptID, err := parseID(c, "attemptID")
	if err != nil {
		return
	}
	if err := h.attemptService.Remove(c.Request.Context(), attemptID); err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ListCourseAttempts godoc
// GET /api/v1/staff/courses/:courseID/attempts
func (h *AttemptHandler) ListCourseAttempts(c *gin.Context) {
	courseID := c.Param("courseID")
	attempts, err := h.attemptService.ListForCourse(c.Request.Context(), courseID)
	if err != nil {
		failFromErr(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}
