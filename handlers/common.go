package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rayannott/ded-moroz/repository"
	"github.com/rayannott/ded-moroz/services"
)

// respondError maps the closed error taxonomy to HTTP statuses. Anything
// outside the taxonomy is an internal error: logged in full, surfaced
// opaquely.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrRoomNotFound),
		errors.Is(err, repository.ErrTargetNotAssigned):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrUserAlreadyExists),
		errors.Is(err, services.ErrAlreadyInRoom),
		errors.Is(err, services.ErrGameAlreadyStarted),
		errors.Is(err, services.ErrGameAlreadyCompleted),
		errors.Is(err, services.ErrGameNotStarted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotInRoom),
		errors.Is(err, services.ErrMaxNumberOfRoomsReached),
		errors.Is(err, services.ErrRoomTooSmall),
		errors.Is(err, services.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logrus.WithError(err).Error("Internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func currentUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return 0, false
	}
	return v.(int64), true
}
