package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"chatline/internal/api/messages"
	"chatline/internal/auth"
	"chatline/internal/chat"
	"chatline/internal/config"
	"chatline/internal/middleware"
	"chatline/internal/storage/postgres"
	"chatline/internal/storage/valkeystore"
	"chatline/internal/ws"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	attachments, err := valkeystore.NewAttachmentStore(cfg.ValkeyAddr, logger)
	if err != nil {
		logger.Fatal("connect to valkey", zap.Error(err))
	}
	defer attachments.Close()

	hub := ws.NewHub(logger)
	go hub.Run()

	store := postgres.NewMessageStore(db, logger)
	directory := postgres.NewDirectory(db)
	service := chat.NewService(store, directory, attachments, hub, logger)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	handler := messages.NewHandler(service, hub, attachments, logger)
	router := mux.NewRouter()
	messages.RegisterRoutes(router, handler, verifier)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           middleware.CORS(cfg.AllowedOrigin)(middleware.Logging(logger)(router)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("listen", zap.Error(err))
	}
}
