package main

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"su_report_bot/internal/config"
	"su_report_bot/internal/jira"
	"su_report_bot/internal/logger"
	"su_report_bot/internal/model"
	"su_report_bot/internal/notion"
	"su_report_bot/internal/report"
	slacknotify "su_report_bot/internal/slack"
	"su_report_bot/internal/storage"
	"su_report_bot/internal/sync"
)

// Schedule-triggered entry point: an EventBridge rule invokes the full
// pipeline once per schedule. The roster can live in S3 so it is editable
// without redeploying the function.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	lambda.Start(handleScheduled)
}

func handleScheduled(ctx context.Context, event events.CloudWatchEvent) error {
	cfg := config.Get()
	logger.GetLogger().Info("scheduled run triggered",
		zap.String("source", event.Source),
		zap.String("detail_type", event.DetailType))

	users, err := loadRoster(ctx, cfg)
	if err != nil {
		return err
	}

	runner, err := buildRunner(cfg, users)
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx)
	logger.GetLogger().Info("run finished", zap.Any("summary", summary))
	return err
}

func loadRoster(ctx context.Context, cfg *config.Config) ([]model.UserProfile, error) {
	if cfg.UsersS3Bucket == "" {
		return cfg.Users, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	roster := storage.NewS3RosterStore(s3.NewFromConfig(awsCfg), cfg.UsersS3Bucket, cfg.UsersS3Key)
	return roster.Load(ctx)
}

func buildRunner(cfg *config.Config, users []model.UserProfile) (*sync.Runner, error) {
	source, err := jira.NewClient(cfg, users)
	if err != nil {
		return nil, err
	}
	return &sync.Runner{
		Source:         source,
		Store:          notion.NewStore(cfg.NotionToken, cfg.NotionDatabaseID, cfg.JiraBaseURL),
		Notify:         slacknotify.NewNotifier(cfg.SlackToken),
		Reports:        report.NewBuilder(cfg.JiraBaseURL),
		Users:          users,
		RefreshHistory: true,
	}, nil
}
