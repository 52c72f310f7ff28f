package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yungbote/medquiz-backend/internal/app"
	apphttp "github.com/yungbote/medquiz-backend/internal/http"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Start(ctx); err != nil {
		application.Log.Error("start background workers", "error", err)
		application.Close()
		os.Exit(1)
	}

	addr := ":" + application.Cfg.Port
	application.Log.Info("HTTP server listening", "addr", addr)
	server := &apphttp.Server{Engine: application.Router}
	if err := server.Run(ctx, addr); err != nil {
		application.Log.Error("HTTP server stopped", "error", err)
		application.Close()
		os.Exit(1)
	}
	application.Log.Info("HTTP server shut down")
}
