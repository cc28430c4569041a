package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"support-service/internal/config"
	"support-service/internal/database/postgres"
	"support-service/internal/database/redis"
	"support-service/internal/event"
	"support-service/internal/handlers"
	"support-service/internal/repository"
	"support-service/internal/services"

	"github.com/gin-gonic/gin"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/support", "log", "support_service")
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		log.Printf("error connect to database: %s", err)
		go postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	}

	redisClient, err := redis.NewRedisClient(cfg.RedisCfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	var publisher *event.IssueEventPublisher
	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		log.Printf("error connect to rabbitmq, issue events disabled: %s", err)
	} else {
		defer rabbitConn.Close()
		publisher = event.NewIssueEventPublisher(rabbitConn)
	}

	// Repositories
	nodeRepo := repository.NewHierarchyNodeRepository(db)
	internalNodeRepo := repository.NewInternalNodeRepository(db)
	issueRepo := repository.NewIssueRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient.GetClient())

	// Services
	jwtService := services.NewJWTService(cfg.JWTSecret)
	visibilityService := services.NewVisibilityService(nodeRepo)
	hierarchyService := services.NewHierarchyService(nodeRepo)
	internalNodeService := services.NewInternalNodeService(internalNodeRepo)
	issueService := services.NewIssueService(issueRepo, nodeRepo, visibilityService, publisher)
	roleService := services.NewRoleService(roleRepo)

	// Handlers
	middleware := handlers.NewMiddleware(jwtService, sessionRepo)
	hierarchyHandler := handlers.NewHierarchyHandler(hierarchyService, internalNodeService)
	issueHandler := handlers.NewIssueHandler(issueService)
	roleHandler := handlers.NewRoleHandler(roleService)

	router := gin.Default()
	router.GET("/support/public/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	hierarchyHandler.RegisterRoutes(router, middleware)
	issueHandler.RegisterRoutes(router, middleware)
	roleHandler.RegisterRoutes(router, middleware)

	log.Printf("support service starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
