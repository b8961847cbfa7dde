package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"su_report_bot/internal/config"
	"su_report_bot/internal/jira"
	"su_report_bot/internal/logger"
	"su_report_bot/internal/notion"
	"su_report_bot/internal/openai"
	"su_report_bot/internal/report"
	"su_report_bot/internal/slack"
	"su_report_bot/internal/sync"
)

// deps is the wired-up client set every subcommand needs.
type deps struct {
	cfg      *config.Config
	source   *jira.Client
	store    *notion.Store
	notifier *slack.Notifier
	reports  *report.Builder
}

func buildDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	source, err := jira.NewClient(cfg, cfg.Users)
	if err != nil {
		return nil, err
	}

	return &deps{
		cfg:      cfg,
		source:   source,
		store:    notion.NewStore(cfg.NotionToken, cfg.NotionDatabaseID, cfg.JiraBaseURL),
		notifier: slack.NewNotifier(cfg.SlackToken),
		reports:  report.NewBuilder(cfg.JiraBaseURL),
	}, nil
}

func newRunCmd() *cobra.Command {
	var skipRefresh bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Full pipeline: sync the mirror, then DM each user their sprint report",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer logger.Sync()

			runner := &sync.Runner{
				Source:         d.source,
				Store:          d.store,
				Notify:         d.notifier,
				Reports:        d.reports,
				Users:          d.cfg.Users,
				RefreshHistory: !skipRefresh,
			}
			summary, err := runner.Run(cmd.Context())
			logger.GetLogger().Info("run finished", zap.Any("summary", summary))
			return err
		},
	}
	cmd.Flags().BoolVar(&skipRefresh, "skip-history-refresh", false,
		"do not refresh mirror records that fell out of the current sprint")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var skipRefresh bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Update the Notion mirror from Jira without sending any messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer logger.Sync()

			runner := &sync.Runner{
				Source:         d.source,
				Store:          d.store,
				Notify:         d.notifier,
				Reports:        d.reports,
				Users:          d.cfg.Users,
				SkipReport:     true,
				RefreshHistory: !skipRefresh,
			}
			summary, err := runner.Run(cmd.Context())
			logger.GetLogger().Info("sync finished", zap.Any("summary", summary))
			return err
		},
	}
	cmd.Flags().BoolVar(&skipRefresh, "skip-history-refresh", false,
		"do not refresh mirror records that fell out of the current sprint")
	return cmd
}

func newNotifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify",
		Short: "DM each user their weekly status report built from the Notion mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer logger.Sync()

			var summarizer sync.Summarizer
			if d.cfg.SummaryEnabled() {
				client, err := openai.NewClient(d.cfg.AzureOpenAIEndpoint, d.cfg.AzureOpenAIKey, d.cfg.AzureOpenAIDeployment)
				if err != nil {
					return fmt.Errorf("create openai client: %w", err)
				}
				summarizer = client
			}

			weekly := &sync.WeeklyReporter{
				Source:     d.source,
				Store:      d.store,
				Notify:     d.notifier,
				Reports:    d.reports,
				Users:      d.cfg.Users,
				Summarizer: summarizer,
			}
			summary, err := weekly.Run(cmd.Context())
			logger.GetLogger().Info("notify finished", zap.Any("summary", summary))
			return err
		},
	}
}
