package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"su_report_bot/internal/config"
	"su_report_bot/internal/jira"
	"su_report_bot/internal/logger"
	"su_report_bot/internal/notion"
	"su_report_bot/internal/report"
	slacknotify "su_report_bot/internal/slack"
	"su_report_bot/internal/sync"
)

// HTTP trigger mode: POST /run executes one full pipeline run and returns
// its summary. Useful behind an internal cron service or for kicking off a
// sync by hand.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/run", handleRun)

	logger.GetLogger().Info("listening", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.GetLogger().Fatal("server stopped", zap.Error(err))
	}
}

func handleRun(c *gin.Context) {
	cfg := config.Get()

	source, err := jira.NewClient(cfg, cfg.Users)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	runner := &sync.Runner{
		Source:         source,
		Store:          notion.NewStore(cfg.NotionToken, cfg.NotionDatabaseID, cfg.JiraBaseURL),
		Notify:         slacknotify.NewNotifier(cfg.SlackToken),
		Reports:        report.NewBuilder(cfg.JiraBaseURL),
		Users:          cfg.Users,
		RefreshHistory: true,
	}

	summary, err := runner.Run(c.Request.Context())
	if err != nil {
		var fatal *sync.FatalError
		status := http.StatusInternalServerError
		if errors.As(err, &fatal) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error(), "summary": summary})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// requestLogger logs one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.GetLogger().Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
