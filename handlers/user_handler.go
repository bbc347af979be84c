package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rayannott/ded-moroz/services"
)

type UserHandler struct {
	moroz *services.Moroz
}

func NewUserHandler(moroz *services.Moroz) *UserHandler {
	return &UserHandler{moroz: moroz}
}

type UpdateNameRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.moroz.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) GetMyInfo(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	info, err := h.moroz.GetUserInformation(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"info": info})
}

func (h *UserHandler) GetMyTarget(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	user, err := h.moroz.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if user.RoomID == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "you are not in a room"})
		return
	}

	target, err := h.moroz.GetTarget(c.Request.Context(), *user.RoomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, target)
}

func (h *UserHandler) UpdateMyName(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.moroz.UpdateName(c.Request.Context(), userID, req.Name); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": true})
}
