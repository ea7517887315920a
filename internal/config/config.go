// Package config loads the process settings from the environment and
// the hackathons configuration document from disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/OWASP-BLT/BLT-Hackathons/internal/domain"
)

// Settings are the process-level knobs, all environment-supplied.
// The token is optional and only degrades throughput when absent.
type Settings struct {
	ConfigPath  string `env:"HACKATHONS_CONFIG_PATH" env-default:"/tmp/hackathons-config-parsed.json"`
	Token       string `env:"GITHUB_TOKEN"`
	OutputDir   string `env:"HACKATHONS_OUTPUT_DIR" env-default:"hackathon-data"`
	SummaryPath string `env:"HACKATHONS_SUMMARY_PATH" env-default:"stats.json"`
}

// LoadSettings reads Settings from the environment.
func LoadSettings() (*Settings, error) {
	var s Settings
	if err := cleanenv.ReadEnv(&s); err != nil {
		return nil, fmt.Errorf("cannot read environment settings: %w", err)
	}
	return &s, nil
}

// Document mirrors the configuration document schema.
type Document struct {
	Hackathons []HackathonConfig `json:"hackathons" validate:"required,min=1,dive"`
}

// HackathonConfig is one event entry in the configuration document.
type HackathonConfig struct {
	Slug      string       `json:"slug" validate:"required"`
	Name      string       `json:"name" validate:"required"`
	StartTime string       `json:"startTime" validate:"required"`
	EndTime   string       `json:"endTime" validate:"required"`
	GitHub    GitHubConfig `json:"github"`
}

// GitHubConfig names the repository sources of one event.
type GitHubConfig struct {
	Organization string   `json:"organization"`
	Repositories []string `json:"repositories"`
}

// Load reads and validates the configuration document at path and
// converts it into domain events. A missing document or one with zero
// events is an error; these are the only process-fatal conditions.
func Load(path string) ([]domain.Hackathon, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %s: %w", path, err)
	}

	var doc Document
	if err := cleanenv.ReadConfig(path, &doc); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	if len(doc.Hackathons) == 0 {
		return nil, errors.New("no hackathons found in config")
	}
	if err := validator.New().Struct(&doc); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	hackathons := make([]domain.Hackathon, 0, len(doc.Hackathons))
	for _, hc := range doc.Hackathons {
		start, err := time.Parse(time.RFC3339, hc.StartTime)
		if err != nil {
			return nil, fmt.Errorf("invalid startTime for %s: %w", hc.Slug, err)
		}
		end, err := time.Parse(time.RFC3339, hc.EndTime)
		if err != nil {
			return nil, fmt.Errorf("invalid endTime for %s: %w", hc.Slug, err)
		}
		hackathons = append(hackathons, domain.Hackathon{
			Slug:         hc.Slug,
			Name:         hc.Name,
			StartTime:    hc.StartTime,
			EndTime:      hc.EndTime,
			Start:        start,
			End:          end,
			Organization: hc.GitHub.Organization,
			Repositories: hc.GitHub.Repositories,
		})
	}
	return hackathons, nil
}
