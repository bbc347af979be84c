package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rayannott/ded-moroz/services"
)

type RoomHandler struct {
	moroz *services.Moroz
	hub   *services.Hub
}

func NewRoomHandler(moroz *services.Moroz, hub *services.Hub) *RoomHandler {
	return &RoomHandler{moroz: moroz, hub: hub}
}

type CreateRoomRequest struct {
	Name string `json:"name" binding:"required"`
}

type JoinRoomRequest struct {
	// Pointer so the valid code 0 survives required-field validation.
	ShortCode *int `json:"short_code" binding:"required"`
}

type KickRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.moroz.CreateRoom(c.Request.Context(), userID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) GetManagedRooms(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	rooms, err := h.moroz.GetRoomsManagedByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) GetRoomInfo(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if !h.requireManager(c, userID) {
		return
	}

	info, err := h.moroz.GetRoomInformation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"info": info})
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.moroz.JoinRoomByShortCode(c.Request.Context(), userID, *req.ShortCode)
	if err != nil {
		respondError(c, err)
		return
	}

	user, err := h.moroz.GetUser(c.Request.Context(), userID)
	if err == nil {
		h.hub.BroadcastRoomEvent(room.ID, services.EventMemberJoined, user)
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	room, err := h.moroz.LeaveRoom(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.BroadcastRoomEvent(room.ID, services.EventMemberLeft, gin.H{"user_id": userID})

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) StartGame(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID := c.Param("id")
	if !h.requireManager(c, userID) {
		return
	}

	pairs, err := h.moroz.StartGame(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.BroadcastRoomEvent(roomID, services.EventGameStarted, gin.H{"players": len(pairs)})

	// The assignment is secret: the API returns only the fact that the game
	// started, the bot tells each giver privately.
	c.JSON(http.StatusOK, gin.H{"started": true, "players": len(pairs)})
}

func (h *RoomHandler) CompleteGame(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID := c.Param("id")
	if !h.requireManager(c, userID) {
		return
	}

	members, err := h.moroz.CompleteGame(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.BroadcastRoomEvent(roomID, services.EventGameCompleted, gin.H{"players": len(members)})

	c.JSON(http.StatusOK, gin.H{"completed": true, "players": len(members)})
}

func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID := c.Param("id")
	if !h.requireManager(c, userID) {
		return
	}

	members, err := h.moroz.DeleteRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.BroadcastRoomEvent(roomID, services.EventRoomDeleted, gin.H{"evicted": len(members)})

	c.JSON(http.StatusOK, gin.H{"deleted": true, "evicted": len(members)})
}

func (h *RoomHandler) KickMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID := c.Param("id")
	if !h.requireManager(c, userID) {
		return
	}

	var req KickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.moroz.GetUser(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if member.RoomID == nil || *member.RoomID != roomID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is not a member of this room"})
		return
	}

	if _, err := h.moroz.LeaveRoom(c.Request.Context(), req.UserID); err != nil {
		respondError(c, err)
		return
	}

	h.hub.BroadcastRoomEvent(roomID, services.EventMemberLeft, gin.H{"user_id": req.UserID, "kicked": true})

	c.JSON(http.StatusOK, gin.H{"kicked": true})
}

// requireManager rejects the request unless the authenticated user manages
// the room in the :id parameter.
func (h *RoomHandler) requireManager(c *gin.Context, userID int64) bool {
	room, err := h.moroz.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return false
	}
	if room.ManagerUserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the room manager can do this"})
		return false
	}
	return true
}
