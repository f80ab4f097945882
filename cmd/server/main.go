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

	"meetmax/internal/auth"
	"meetmax/internal/chat"
	"meetmax/internal/config"
	"meetmax/internal/database"
	"meetmax/internal/email"
	"meetmax/internal/logging"
	"meetmax/internal/redisx"
	"meetmax/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logCloser, err := logging.Setup(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		log.Fatalf("log setup error: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	redisClient, err := redisx.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis error: %v", err)
	}
	defer redisClient.Close()

	users := auth.NewUserRepository(db)
	hasher := auth.NewBcryptHasher()
	tokens, err := auth.NewTokenService(auth.TokenConfig(cfg.Tokens), users, hasher)
	if err != nil {
		log.Fatalf("token service error: %v", err)
	}

	if !cfg.Google.Enabled() {
		log.Printf("google sign-in is not configured; callbacks will fail")
	}
	google := auth.NewGoogleOAuth(auth.GoogleConfig(cfg.Google))

	var sender email.MessageSender = email.NewSender(cfg.Email)
	if !cfg.Email.Enabled() {
		log.Printf("smtp is not configured; emails are written to the log")
		sender = email.LogSender{}
	}
	mailer := email.NewTemplateMailer(sender)

	authSvc := auth.NewService(users, tokens, hasher, auth.NewOTPGenerator(), mailer, google, auth.ServiceConfig{
		OTPTTL:                cfg.OTPTTL,
		FrontendURL:           cfg.FrontendURL,
		SkipEmailVerification: cfg.NoEmailVerify,
	})

	chatStore := chat.NewRepository(db)
	hub := chat.NewHub()
	broadcaster := chat.NewRedisBroadcaster(redisClient)
	registry := chat.NewRegistry(chatStore)
	stream := chat.NewStream(chatStore, registry, broadcaster)

	go broadcaster.Serve(ctx, hub, nil)

	api := server.NewServer(cfg, authSvc, registry, stream, hub, redisClient)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("Listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
