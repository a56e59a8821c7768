package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemchat/gemchat/config"
	"gemchat/gemchat/controllers"
	"gemchat/gemchat/routes"
	"gemchat/gemchat/services/genai"
	"gemchat/gemchat/services/title"
	"gemchat/gemchat/sources/store/dao"
	"gemchat/gemchat/utils/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)

	conversations, err := dao.Open(cfg.Store)
	if err != nil {
		logging.ErrorLogger.Error("store open error", zap.Error(err))
		os.Exit(1)
	}
	defer conversations.Close()
	logging.AppLogger.Info("store opened", zap.String("backend", conversations.BackendName()))

	client := genai.NewClient(cfg.GenAI)
	titles := title.NewGenerator(conversations, client, cfg.GenAI.TitleModel)
	chatCtrl := controllers.NewChatController(conversations, client, titles, cfg.GenAI)
	healthCtrl := controllers.NewHealthController(conversations.BackendName())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(300 * time.Second))

	r.Mount("/health", routes.HealthRoutes(healthCtrl))
	r.Mount("/chat", routes.ChatRoutes(chatCtrl))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	go func() {
		logging.AppLogger.Info("listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.ErrorLogger.Error("server listen error", zap.Error(err))
		}
	}()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	logging.AppLogger.Info("server shutdown complete")
}
