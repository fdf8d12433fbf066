package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mkrupp/sessionkit/internal/domain"
	"github.com/mkrupp/sessionkit/internal/infra/config"
	"github.com/mkrupp/sessionkit/internal/infra/logging"
	"github.com/mkrupp/sessionkit/internal/repo/session"
	"github.com/mkrupp/sessionkit/internal/svc/sessionsvc"
)

const (
	appName = "sessionkit"
	svcName = "sessionctl"

	usage = `usage: sessionctl [flags] <command>

commands:
  register   create an account (-email, -name, -password)
  login      authenticate and persist the session (-email, -password)
  logout     end the session (always succeeds locally)
  whoami     show the current user, fetching it if not cached
  reload     refetch the current user, replacing the cached copy
  refresh    rotate the session token
  status     show the observable session state
`
)

type Config struct {
	config.EnvConfig

	Log    logging.LoggerConfig                  `envPrefix:"LOG_"`
	Client sessionsvc.HTTPClientConfig           `envPrefix:"CLIENT_"`
	Store  session.SQLiteSessionRepositoryConfig `envPrefix:"STORE_"`
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

	var (
		email    = flag.String("email", "", "account email")
		name     = flag.String("name", "", "display name (register only)")
		password = flag.String("password", "", "account password")
	)

	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(ctx, cfg, command, *email, *name, *password); err != nil {
		logging.GetLogger("cmd.sessionctl").ErrorContext(ctx, "error", "err", err)
		os.Exit(1)
	}
}

//nolint:cyclop
func run(ctx context.Context, cfg Config, command, email, name, password string) (err error) {
	repo, err := session.SQLiteSessionRepositoryFactory(cfg.Store)()
	if err != nil {
		return fmt.Errorf("new session repo: %w", err)
	}
	defer repo.Close()

	store := sessionsvc.NewSessionStore(repo)
	client := sessionsvc.NewHTTPClient(cfg.Client, store, nil)
	svc := sessionsvc.NewSessionService(ctx, client, store)

	switch command {
	case "register":
		user, err := client.Register(ctx, email, name, password)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}

		fmt.Printf("registered %s <%s>\n", user.Name, user.Email)
	case "login":
		user, err := svc.Login(ctx, email, password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		fmt.Printf("logged in as %s <%s>\n", user.Name, user.Email)
	case "logout":
		svc.Logout(ctx)

		fmt.Println("logged out")
	case "whoami":
		user, err := svc.CurrentUser(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNoSession) {
				fmt.Println("not logged in")

				return nil
			}

			return fmt.Errorf("current user: %w", err)
		}

		fmt.Printf("%s <%s>\n", user.Name, user.Email)
	case "reload":
		user, err := svc.ReloadUser(ctx)
		if err != nil {
			return fmt.Errorf("reload user: %w", err)
		}

		fmt.Printf("%s <%s>\n", user.Name, user.Email)
	case "refresh":
		if _, err := svc.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh: %w", err)
		}

		fmt.Println("token refreshed")
	case "status":
		printStatus(svc)
	default:
		fmt.Fprint(os.Stderr, usage)

		return fmt.Errorf("unknown command: %s", command)
	}

	return nil
}

func printStatus(svc *sessionsvc.SessionService) {
	state := svc.State()

	if svc.IsAuthenticated() {
		fmt.Printf("authenticated as %s <%s>\n", state.User.Name, state.User.Email)
	} else {
		fmt.Println("anonymous")
	}

	if state.Error != "" {
		fmt.Printf("last error: %s\n", state.Error)
	}
}
