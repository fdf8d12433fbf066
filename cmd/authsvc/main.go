package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mkrupp/sessionkit/internal/infra/config"
	"github.com/mkrupp/sessionkit/internal/infra/logging"
	"github.com/mkrupp/sessionkit/internal/infra/transport/http"
	"github.com/mkrupp/sessionkit/internal/svc/authsvc"
)

const (
	appName = "sessionkit"
	svcName = "authsvc"
)

type Config struct {
	config.EnvConfig

	Log  logging.LoggerConfig        `envPrefix:"LOG_"`
	Auth authsvc.AuthConfig          `envPrefix:"AUTH_"`
	HTTP authsvc.HTTPTransportConfig `envPrefix:"HTTP_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	// Missing .env is fine, the environment itself may carry everything.
	_ = godotenv.Load()

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.authsvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
			panic(err)
		}

		log.InfoContext(ctx, "shutdown")
	}()

	authSvc := authsvc.NewAuthService(cfg.Auth)
	httpTransport := authsvc.NewHTTPTransport(authSvc, cfg.HTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.HTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
