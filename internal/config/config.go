// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissing is wrapped by every validation error about absent settings.
var ErrMissing = errors.New("missing required configuration")

// DefaultFile is read when no config file is given and it exists.
const DefaultFile = ".weave.yaml"

// Config holds all configuration parameters for the application.
type Config struct {
	GitHub   GitHubConfig
	Jira     JiraConfig
	Database DatabaseConfig
	Fetch    FetchConfig
	Timeline TimelineConfig
	Identity IdentityConfig
	Scanner  ScannerConfig
	Log      LogConfig
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token      string
	Domain     string
	Repository string

	// Branches restricts the walk; empty means every branch
	Branches []string
}

// Owner returns the owner part of Repository.
func (g GitHubConfig) Owner() string {
	owner, _, _ := strings.Cut(g.Repository, "/")
	return owner
}

// Repo returns the name part of Repository.
func (g GitHubConfig) Repo() string {
	_, repo, _ := strings.Cut(g.Repository, "/")
	return repo
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL         string
	Username    string
	Token       string
	Project     string
	JQL         string
	SprintField string
}

// Query returns the configured JQL, or the project's issues newest first.
func (j JiraConfig) Query() string {
	if j.JQL != "" {
		return j.JQL
	}
	return fmt.Sprintf("project = %q ORDER BY created DESC", j.Project)
}

// DatabaseConfig holds storage configuration.
type DatabaseConfig struct {
	Path string
}

// FetchConfig bounds pagination and retries.
type FetchConfig struct {
	PageSize               int
	MaxAttempts            int
	RetryDelay             time.Duration
	RateLimitMargin        time.Duration
	MaxPages               int
	MaxConsecutiveFailures int
}

// TimelineConfig configures stage mapping.
type TimelineConfig struct {
	InitialStage string
}

// IdentityConfig configures identity resolution.
type IdentityConfig struct {
	// MappingsFile is an optional YAML file of authoritative mappings
	MappingsFile string
}

// ScannerConfig configures the complexity scanner.
type ScannerConfig struct {
	Enabled  bool
	Binary   string
	Checkout string
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.domain", "github.com")
	v.SetDefault("jira.sprint_field", "customfield_10020")
	v.SetDefault("database.path", "weave.db")
	v.SetDefault("fetch.page_size", 100)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.retry_delay", 5*time.Second)
	v.SetDefault("fetch.rate_limit_margin", 5*time.Second)
	v.SetDefault("fetch.max_pages", 1000)
	v.SetDefault("fetch.max_consecutive_failures", 3)
	v.SetDefault("timeline.initial_stage", "To Do")
	v.SetDefault("scanner.enabled", false)
	v.SetDefault("scanner.binary", "scc")
	v.SetDefault("scanner.checkout", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// New returns a viper instance with defaults, environment bindings and,
// when present, the config file at path.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	// Map specific environment variables
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("github.repository", "GITHUB_REPOSITORY")
	v.BindEnv("github.branches", "GITHUB_BRANCHES")
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")
	v.BindEnv("jira.project", "JIRA_PROJECT")
	v.BindEnv("jira.jql", "JIRA_JQL")
	v.BindEnv("database.path", "WEAVE_DB_PATH")
	v.BindEnv("log.level", "LOG_LEVEL")

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return v, nil
}

// LoadConfig loads configuration from the config file at path and the environment.
func LoadConfig(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return FromViper(v), nil
}

// FromViper builds a Config from an initialized viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		GitHub: GitHubConfig{
			Token:      v.GetString("github.token"),
			Domain:     v.GetString("github.domain"),
			Repository: v.GetString("github.repository"),
			Branches:   splitList(v.GetStringSlice("github.branches")),
		},
		Jira: JiraConfig{
			URL:         v.GetString("jira.url"),
			Username:    v.GetString("jira.username"),
			Token:       v.GetString("jira.token"),
			Project:     v.GetString("jira.project"),
			JQL:         v.GetString("jira.jql"),
			SprintField: v.GetString("jira.sprint_field"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Fetch: FetchConfig{
			PageSize:               v.GetInt("fetch.page_size"),
			MaxAttempts:            v.GetInt("fetch.max_attempts"),
			RetryDelay:             v.GetDuration("fetch.retry_delay"),
			RateLimitMargin:        v.GetDuration("fetch.rate_limit_margin"),
			MaxPages:               v.GetInt("fetch.max_pages"),
			MaxConsecutiveFailures: v.GetInt("fetch.max_consecutive_failures"),
		},
		Timeline: TimelineConfig{
			InitialStage: v.GetString("timeline.initial_stage"),
		},
		Identity: IdentityConfig{
			MappingsFile: v.GetString("identity.mappings_file"),
		},
		Scanner: ScannerConfig{
			Enabled:  v.GetBool("scanner.enabled"),
			Binary:   v.GetString("scanner.binary"),
			Checkout: v.GetString("scanner.checkout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ValidateGitHubConfig validates GitHub-specific configuration.
func ValidateGitHubConfig(config *Config) error {
	var missingVars []string

	if config.GitHub.Token == "" {
		missingVars = append(missingVars, "GITHUB_TOKEN")
	}
	if config.GitHub.Owner() == "" || config.GitHub.Repo() == "" {
		missingVars = append(missingVars, "GITHUB_REPOSITORY")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("%w: missing required environment variables: %v", ErrMissing, missingVars)
	}
	return nil
}

// ValidateJiraConfig validates JIRA-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}
	if config.Jira.Project == "" && config.Jira.JQL == "" {
		missingVars = append(missingVars, "JIRA_PROJECT")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("%w: missing required environment variables: %v", ErrMissing, missingVars)
	}
	return nil
}
