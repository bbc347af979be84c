package main

import (
	"context"
	"math/rand"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rayannott/ded-moroz/config"
	"github.com/rayannott/ded-moroz/handlers"
	"github.com/rayannott/ded-moroz/middleware"
	"github.com/rayannott/ded-moroz/models"
	"github.com/rayannott/ded-moroz/repository"
	"github.com/rayannott/ded-moroz/routes"
	"github.com/rayannott/ded-moroz/services"
	"github.com/rayannott/ded-moroz/telegram"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	var repo repository.Repository
	switch cfg.Storage {
	case "memory":
		logrus.Warn("Using in-memory storage, all data is lost on restart")
		repo = repository.NewMemoryRepository()
	default:
		db, err := config.InitDB(cfg)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to database")
		}
		if err := db.AutoMigrate(&models.User{}, &models.Room{}, &models.Target{}); err != nil {
			logrus.WithError(err).Fatal("Failed to migrate database")
		}
		repo = repository.NewGormRepository(db)
	}

	moroz := services.NewMoroz(repo, services.MorozConfig{
		MaxRoomsManagedByUser: cfg.MaxRoomsManagedByUser,
		MinPlayersToStartGame: cfg.MinPlayersToStartGame,
	}, rand.New(rand.NewSource(time.Now().UnixNano())))

	tokens := services.NewTokenService(cfg.JWTSecret, 24*time.Hour)

	hub := services.NewHub()
	go hub.Run()

	if cfg.BotToken != "" {
		redisClient := config.InitRedis(cfg)
		client := telegram.NewClient(cfg.BotToken)
		state := telegram.NewStateStore(redisClient)
		handler := telegram.NewHandler(client, state, moroz, tokens)
		poller := telegram.NewPoller(client, handler)
		go poller.Run(context.Background())
	} else {
		logrus.Warn("BOT_TOKEN not set, running without the Telegram bot")
	}

	router := gin.Default()
	router.Use(middleware.CORS())

	roomHandler := handlers.NewRoomHandler(moroz, hub)
	userHandler := handlers.NewUserHandler(moroz)

	routes.SetupRoutes(router, roomHandler, userHandler, hub, moroz, tokens)

	addr := cfg.BindAddress + ":" + cfg.Port
	logrus.WithField("addr", addr).Info("Server starting")
	if err := router.Run(addr); err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
}
