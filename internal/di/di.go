package di

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/huavcjj/mailgate/internal/config"
	connectiondomain "github.com/huavcjj/mailgate/internal/domain/connection"
	maildomain "github.com/huavcjj/mailgate/internal/domain/mail"
	verdictdomain "github.com/huavcjj/mailgate/internal/domain/verdict"
	"github.com/huavcjj/mailgate/internal/handler"
	mailhandler "github.com/huavcjj/mailgate/internal/handler/mail"
	oauthhandler "github.com/huavcjj/mailgate/internal/handler/oauth"
	verdicthandler "github.com/huavcjj/mailgate/internal/handler/verdict"
	connectionrepo "github.com/huavcjj/mailgate/internal/infrastructure/repository/connection"
	llmrepo "github.com/huavcjj/mailgate/internal/infrastructure/repository/llm"
	yahoorepo "github.com/huavcjj/mailgate/internal/infrastructure/repository/yahoo"
	"github.com/huavcjj/mailgate/internal/metrics"
	"github.com/huavcjj/mailgate/internal/service/connect"
	"github.com/huavcjj/mailgate/internal/service/mail"
	"github.com/huavcjj/mailgate/internal/service/statetoken"
	"github.com/huavcjj/mailgate/internal/service/token"
	"github.com/huavcjj/mailgate/internal/service/verdict"
)

type Container struct {
	DB             *sqlx.DB
	ConnectionRepo connectiondomain.ConnectionRepo
	OAuthRepo      connectiondomain.OAuthRepo
	MailboxRepo    maildomain.MailboxRepo
	SenderRepo     maildomain.SenderRepo
	VerdictRepo    verdictdomain.VerdictRepo
	TokenManager   *token.Manager
	ConnectService *connect.Service
	MailService    *mail.Service
	VerdictService *verdict.Service
	Metrics        *metrics.Metrics
}

// NewContainer wires every dependency. Storage and the verdict model are
// optional: when they fail to initialise the process still starts and the
// affected routes report the problem per request.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	var db *sqlx.DB
	if dsn := cfg.DSN(); dsn == "" {
		slog.Warn("no database configured, token storage disabled")
	} else {
		opened, err := connectionrepo.Open(ctx, cfg.DBDriver, dsn)
		if err != nil {
			slog.Warn("database unavailable, token storage disabled", "driver", cfg.DBDriver, "error", err)
		} else {
			slog.Info("database connected", "driver", cfg.DBDriver)
			db = opened
		}
	}

	if cfg.StateSecret == "" {
		slog.Warn("STATE_SECRET is empty, using a random per-process secret")
	}
	states, err := statetoken.New(cfg.StateSecret, cfg.StateTTL)
	if err != nil {
		return nil, err
	}

	if cfg.YahooClientID == "" || cfg.YahooClientSecret == "" {
		slog.Warn("YAHOO_CLIENT_ID or YAHOO_CLIENT_SECRET missing, OAuth routes will fail")
	}

	m := metrics.New()

	connectionRepo := connectionrepo.NewConnectionRepo(db)
	oauthRepo := yahoorepo.NewOAuthRepo(yahoorepo.OAuthConfig{
		ClientID:     cfg.YahooClientID,
		ClientSecret: cfg.YahooClientSecret,
		RedirectURL:  cfg.RedirectURI(),
		Scopes:       cfg.Scopes(),
	})
	mailboxRepo := yahoorepo.NewMailboxRepo(cfg.IMAPAddr)
	senderRepo := yahoorepo.NewSenderRepo(cfg.SMTPAddr)

	verdictRepo, err := llmrepo.NewVerdictRepo(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	if err != nil {
		slog.Warn("verdict endpoint disabled", "error", err)
	}

	tokenManager := token.NewManager(connectionRepo, oauthRepo, m)

	return &Container{
		DB:             db,
		ConnectionRepo: connectionRepo,
		OAuthRepo:      oauthRepo,
		MailboxRepo:    mailboxRepo,
		SenderRepo:     senderRepo,
		VerdictRepo:    verdictRepo,
		TokenManager:   tokenManager,
		ConnectService: connect.NewService(oauthRepo, connectionRepo, states),
		MailService:    mail.NewService(tokenManager, mailboxRepo, senderRepo),
		VerdictService: verdict.NewService(verdictRepo, cfg.VerdictThreshold),
		Metrics:        m,
	}, nil
}

// Handler builds the application router. deepLink is where app-mode OAuth
// callbacks land.
func (c *Container) Handler(deepLink string) http.Handler {
	return handler.NewRouter(handler.Handlers{
		OAuth:   oauthhandler.NewYahooOAuthHandler(c.ConnectService, deepLink),
		Mail:    mailhandler.NewMailHandler(c.MailService, c.ConnectService),
		Verdict: verdicthandler.NewVerdictHandler(c.VerdictService),
		Metrics: c.Metrics,
	})
}

func (c *Container) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
