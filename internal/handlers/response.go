package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/logger"
	"github.com/thereayou/loci-chat/internal/metrics"
	"github.com/thereayou/loci-chat/internal/middleware"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, err error) {
	e := apperrors.From(err)
	status := apperrors.HTTPStatus(e)
	metrics.ErrorsTotal.WithLabelValues(string(e.Kind)).Inc()

	if status >= http.StatusInternalServerError {
		logger.Ctx(c.Request.Context()).Error().Err(err).Str(logger.FieldPath, c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"success": false, "code": e.Code, "message": apperrors.PublicMessage(e)})
}

func currentUser(c *gin.Context) uuid.UUID {
	return c.MustGet(middleware.UserIDKey).(uuid.UUID)
}

// uuidParam parses a path parameter, writing a 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperrors.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, apperrors.Validation("invalid request body"))
		return false
	}
	return true
}
