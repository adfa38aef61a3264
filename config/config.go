// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	SlackBotToken      string `envconfig:"SLACK_BOT_TOKEN" required:"true"`
	SlackSigningSecret string `envconfig:"SLACK_SIGNING_SECRET" required:"true"`

	// Slack user ID of the bot admin. Messages the bot can't understand
	// are forwarded here, and this user may send messages as the bot.
	AdminSlackUserID string `envconfig:"ADMIN_SLACK_USER_ID"`

	// bearer token for the pool/round management API; empty disables it
	AdminAPIToken string `envconfig:"ADMIN_API_TOKEN"`

	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite3"`
	DBPath   string `envconfig:"DB_PATH"`

	DynamoTableNamePrefix string `envconfig:"DYNAMO_TABLE_NAME_PREFIX" default:"slack_meetups"`

	OpenAIModel string `envconfig:"OPENAI_MODEL"`

	ListenSocket string `envconfig:"LISTEN_SOCKET" default:":3000"`
}

func Load() (*Config, error) {
	// missing .env is fine, real deployments set the environment directly
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config failed: %w", err)
	}
	return &c, nil
}
