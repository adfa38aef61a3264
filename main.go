package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/slack-go/slack"

	"github.com/RaschidJFR/slack-meetups/config"
	"github.com/RaschidJFR/slack-meetups/domain/infra"
	"github.com/RaschidJFR/slack-meetups/handler"
	"github.com/RaschidJFR/slack-meetups/matcher"
	"github.com/RaschidJFR/slack-meetups/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config failed", slog.Any("err", err))
		os.Exit(1)
	}

	ds, err := newDatastore(cfg)
	if err != nil {
		slog.Error("initializing datastore failed", slog.Any("err", err))
		os.Exit(1)
	}

	client := slack.New(cfg.SlackBotToken)
	auth, err := client.AuthTest()
	if err != nil {
		slog.Error("slack auth test failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("authenticated with Slack", slog.String("bot_user", auth.UserID))

	ai, err := infra.NewOpenAI(cfg.OpenAIModel)
	if err != nil {
		slog.Error("initializing openai client failed", slog.Any("err", err))
		os.Exit(1)
	}

	queue := tasks.NewQueue(client, ds, ai)
	svc := matcher.NewService(client, ds, queue)
	h := handler.New(cfg, ds, queue, svc)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /slack/message",
		handler.VerifySlackRequest(cfg.SlackSigningSecret, h.HandleSlackMessage))
	mux.HandleFunc("POST /slack/action",
		handler.VerifySlackRequest(cfg.SlackSigningSecret, h.HandleSlackAction))
	mux.HandleFunc("GET /pools/{channel}/stats", h.HandlePoolStats)
	mux.HandleFunc("POST /api/pools",
		handler.RequireAPIToken(cfg.AdminAPIToken, h.HandleCreatePool))
	mux.HandleFunc("POST /api/rounds",
		handler.RequireAPIToken(cfg.AdminAPIToken, h.HandleStartRound))
	mux.HandleFunc("POST /api/matches",
		handler.RequireAPIToken(cfg.AdminAPIToken, h.HandleMakeMatches))

	slog.Info("Server listening", slog.String("bind", cfg.ListenSocket))
	if err := http.ListenAndServe(cfg.ListenSocket, mux); err != nil {
		slog.Error("Server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func newDatastore(cfg *config.Config) (infra.Datastore, error) {
	if cfg.DBDriver == "dynamodb" {
		return infra.NewDynamoDB(cfg.DynamoTableNamePrefix)
	}
	return infra.NewDataBase(cfg.DBPath)
}
