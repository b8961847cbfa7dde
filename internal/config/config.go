package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"su_report_bot/internal/model"
)

// Config holds all configuration for the report bot.
type Config struct {
	// Jira configuration
	JiraBaseURL  string // Required: Jira site URL, e.g. https://example.atlassian.net
	JiraUserName string // Required: Jira account email for basic auth
	JiraAPIToken string // Required: Jira API token

	// Custom field ids differ per Jira site
	SprintField     string // sprint list custom field, default customfield_10008
	StoryPointField string // story point custom field, default customfield_10027

	// Notion configuration
	NotionToken      string // Required: Notion integration token
	NotionDatabaseID string // Required: database holding the ticket mirror

	// Slack configuration
	SlackToken string // Required: Slack bot user OAuth token

	// Users is the static roster of people to sync and report on.
	// Loaded from the JIRA_USERS env var, or from S3 when UsersS3Bucket is set.
	Users []model.UserProfile

	// Azure OpenAI configuration for the optional weekly summary.
	// All three must be set together or the summary is skipped.
	AzureOpenAIEndpoint   string
	AzureOpenAIKey        string
	AzureOpenAIDeployment string

	// S3 roster location used by the Lambda entry point
	UsersS3Bucket string
	UsersS3Key    string

	// HTTPAddr is the listen address for the server trigger mode
	HTTPAddr string

	// Log level
	LogLevel string
}

// instance holds the singleton config instance
var instance *Config

// Get returns the singleton config instance
func Get() *Config {
	if instance == nil {
		panic("config not initialized")
	}
	return instance
}

// Load creates a new Config instance from environment variables. A .env file
// in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	requiredVars := map[string]*string{
		"JIRA_BASE_URL":      &cfg.JiraBaseURL,
		"JIRA_USER_NAME":     &cfg.JiraUserName,
		"JIRA_API_TOKEN":     &cfg.JiraAPIToken,
		"NOTION_TOKEN":       &cfg.NotionToken,
		"NOTION_DATABASE_ID": &cfg.NotionDatabaseID,
		"SLACK_TOKEN":        &cfg.SlackToken,
	}

	var missingVars []string
	for env, ptr := range requiredVars {
		*ptr = os.Getenv(env)
		if *ptr == "" {
			missingVars = append(missingVars, env)
		}
	}
	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	cfg.JiraBaseURL = strings.TrimRight(cfg.JiraBaseURL, "/")
	cfg.SprintField = getEnvWithDefault("JIRA_SPRINT_FIELD", "customfield_10008")
	cfg.StoryPointField = getEnvWithDefault("JIRA_STORY_POINT_FIELD", "customfield_10027")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":8080")

	cfg.UsersS3Bucket = os.Getenv("USERS_S3_BUCKET")
	cfg.UsersS3Key = getEnvWithDefault("USERS_S3_KEY", "roster.json")

	usersJSON := os.Getenv("JIRA_USERS")
	switch {
	case usersJSON != "":
		if err := json.Unmarshal([]byte(usersJSON), &cfg.Users); err != nil {
			return nil, fmt.Errorf("parse JIRA_USERS: %w", err)
		}
	case cfg.UsersS3Bucket == "":
		// without an S3 roster the env roster is mandatory
		return nil, fmt.Errorf("missing required environment variables: JIRA_USERS")
	}

	cfg.AzureOpenAIEndpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
	cfg.AzureOpenAIKey = os.Getenv("AZURE_OPENAI_KEY")
	cfg.AzureOpenAIDeployment = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
	if err := validateAzureVars(cfg); err != nil {
		return nil, err
	}

	instance = cfg
	return cfg, nil
}

// SummaryEnabled reports whether the Azure OpenAI summary is configured.
func (c *Config) SummaryEnabled() bool {
	return c.AzureOpenAIEndpoint != "" && c.AzureOpenAIKey != "" && c.AzureOpenAIDeployment != ""
}

func validateAzureVars(cfg *Config) error {
	set := 0
	for _, v := range []string{cfg.AzureOpenAIEndpoint, cfg.AzureOpenAIKey, cfg.AzureOpenAIDeployment} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_KEY and AZURE_OPENAI_DEPLOYMENT must be set together")
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
