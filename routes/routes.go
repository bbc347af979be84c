package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rayannott/ded-moroz/handlers"
	"github.com/rayannott/ded-moroz/middleware"
	"github.com/rayannott/ded-moroz/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	roomHandler *handlers.RoomHandler,
	userHandler *handlers.UserHandler,
	hub *services.Hub,
	moroz *services.Moroz,
	tokens *services.TokenService,
) {
	// API routes, all behind the bot-minted bearer token
	api := router.Group("/api")
	api.Use(middleware.Auth(tokens))
	{
		me := api.Group("/me")
		{
			me.GET("", userHandler.GetMe)
			me.GET("/info", userHandler.GetMyInfo)
			me.GET("/target", userHandler.GetMyTarget)
			me.PUT("/name", userHandler.UpdateMyName)
		}

		rooms := api.Group("/rooms")
		{
			rooms.POST("", roomHandler.CreateRoom)
			rooms.GET("", roomHandler.GetManagedRooms)
			rooms.POST("/join", roomHandler.JoinRoom)
			rooms.POST("/leave", roomHandler.LeaveRoom)
			rooms.GET("/:id/info", roomHandler.GetRoomInfo)
			rooms.POST("/:id/start", roomHandler.StartGame)
			rooms.POST("/:id/complete", roomHandler.CompleteGame)
			rooms.POST("/:id/kick", roomHandler.KickMember)
			rooms.DELETE("/:id", roomHandler.DeleteRoom)
		}
	}

	// WebSocket endpoint: the room manager can watch joins/leaves/start live.
	// The token travels as a query parameter because browsers cannot set
	// headers on websocket upgrades.
	router.GET("/ws/rooms/:id", func(c *gin.Context) {
		userID, err := tokens.ValidateToken(c.Query("token"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		roomID := c.Param("id")
		room, err := moroz.GetRoom(c.Request.Context(), roomID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if room.ManagerUserID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the room manager can watch this room"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.WithError(err).Error("Websocket upgrade failed")
			return
		}

		hub.RegisterClient(conn, roomID)
	})
}
