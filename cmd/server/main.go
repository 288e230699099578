package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chat-bankrot/community-chat/internal/auth"
	"github.com/chat-bankrot/community-chat/internal/chat"
	"github.com/chat-bankrot/community-chat/internal/config"
	"github.com/chat-bankrot/community-chat/internal/db"
	"github.com/chat-bankrot/community-chat/internal/httpapi"
	"github.com/chat-bankrot/community-chat/internal/httpapi/handlers"
	"github.com/chat-bankrot/community-chat/internal/payment"
	"github.com/chat-bankrot/community-chat/internal/store/rabbitmq"
	"github.com/chat-bankrot/community-chat/internal/store/redisstore"
	"github.com/chat-bankrot/community-chat/internal/subscription"
	"github.com/chat-bankrot/community-chat/internal/support"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Duration(cfg.TypingTTLSec)*time.Second)
	defer rds.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		cancel()
		log.Fatalf("redis ping: %v", err)
	}
	cancel()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer pub.Close()

	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is required")
	}
	adminHash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("hash admin password: %v", err)
	}

	subRepo := subscription.NewRepo(gdb)
	chatRepo := chat.NewRepo(gdb)

	chatSvc := chat.NewService(chatRepo, rds, subRepo, cfg.ChatWindowSize)
	subSvc := subscription.NewService(subRepo, chatRepo)

	checkout := payment.NewCheckoutClient(cfg.CheckoutBaseURL, cfg.CheckoutShopID, cfg.CheckoutSecretKey)
	paySvc := payment.NewService(payment.NewRepo(gdb), checkout, subSvc, pub, cfg.PublicBaseURL)
	supportSvc := support.NewService(support.NewRepo(gdb))

	h := handlers.NewHandler(cfg, rds, chatSvc, subSvc, paySvc, supportSvc, pub, adminHash)
	r := httpapi.NewRouter(cfg, rds, h)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server started addr=%s window=%d", cfg.Addr, cfg.ChatWindowSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
