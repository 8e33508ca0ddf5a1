package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/provigil/proctor-backend/internal/downstream"
	"github.com/provigil/proctor-backend/internal/response"
)

// RequireCourseStaff verifies the authenticated staff user actually holds a
// staff role on the course named by the :courseID path param. Membership is
// answered by the platform's instructor service, not by local state.
func RequireCourseStaff(instructor downstream.InstructorService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		courseID := c.Param("courseID")
		if courseID == "" {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		ok, err := instructor.IsCourseStaff(c.Request.Context(), claims.UserID, courseID)
		if err != nil {
			log.Error().Err(err).Int("user_id", claims.UserID).
				Str("course_id", courseID).Msg("course staff check failed")
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if !ok {
			response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		c.Next()
	}
}
