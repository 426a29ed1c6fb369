// Command teachmate drives the teacher dashboard from a terminal: browse the
// curriculum, generate and track lesson plans, review assessments and
// student progress, and ask the assistant.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/teachmate/internal/account"
	"github.com/p-n-ai/teachmate/internal/curriculum"
	"github.com/p-n-ai/teachmate/internal/gateway"
	"github.com/p-n-ai/teachmate/internal/notify"
	"github.com/p-n-ai/teachmate/internal/planner"
	"github.com/p-n-ai/teachmate/internal/platform/config"
	"github.com/p-n-ai/teachmate/internal/platform/database"
	"github.com/p-n-ai/teachmate/internal/platform/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	e := newEnv(os.Stdout, os.Stderr)
	defer e.close()
	if err := newRootCmd(e).ExecuteContext(ctx); err != nil {
		e.reportError(err)
		os.Exit(1)
	}
}

// env is what every command shares: configuration, credentials, output
// streams and the lazily opened database.
type env struct {
	out, errOut     io.Writer
	email, password string
	cfg             *config.Config
	now             func() time.Time

	db      *database.DB
	closers []func()
}

func newEnv(out, errOut io.Writer) *env {
	return &env{out: out, errOut: errOut, now: time.Now}
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "teachmate",
		Short:         "TeachMate teacher dashboard on the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup()
		},
	}
	root.PersistentFlags().StringVar(&e.email, "email", "", "teacher email (env TEACHMATE_EMAIL)")
	root.PersistentFlags().StringVar(&e.password, "password", "", "teacher password (env TEACHMATE_PASSWORD)")

	root.AddCommand(
		newLoginCmd(e),
		newCurriculumCmd(e),
		newPlanCmd(e),
		newAssessmentsCmd(e),
		newDashboardCmd(e),
		newReportCmd(e),
		newAskCmd(e),
		newPurgeCmd(e),
	)
	return root
}

// setup loads configuration. It runs before every command, so tests may
// preset e.cfg to skip the environment.
func (e *env) setup() error {
	if e.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		e.cfg = cfg
	}
	slog.SetDefault(logging.New(e.errOut, e.cfg.Log))

	if e.email == "" {
		e.email = os.Getenv("TEACHMATE_EMAIL")
	}
	if e.password == "" {
		e.password = os.Getenv("TEACHMATE_PASSWORD")
	}
	return nil
}

// database opens the configured database once. It returns nil when no
// database is configured.
func (e *env) database(ctx context.Context) (*database.DB, error) {
	if e.db != nil || e.cfg.Database.URL == "" {
		return e.db, nil
	}
	db, err := database.New(ctx, e.cfg.Database.URL, e.cfg.Database.MaxConns, e.cfg.Database.MinConns)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	e.db = db
	e.closers = append(e.closers, db.Close)
	return db, nil
}

var errNoDatabase = errors.New("this command needs TEACHMATE_DATABASE_URL")

// teacher is a signed-in session against the backend.
type teacher struct {
	user     account.User
	backend  *gateway.Client
	accounts *account.Service
	notifier notify.Notifier
}

// signIn logs in with the configured credentials. With a database the
// sealed token is saved so the server can restore the session.
func (e *env) signIn(ctx context.Context) (*teacher, error) {
	if e.email == "" || e.password == "" {
		return nil, errors.New("credentials required: pass --email and --password or set TEACHMATE_EMAIL and TEACHMATE_PASSWORD")
	}

	var store account.Store = account.NewMemoryStore()
	db, err := e.database(ctx)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if store, err = account.NewPostgresStore(db.Pool); err != nil {
			return nil, err
		}
	}

	sealer, err := account.NewSealer(e.cfg.Auth.SealSecret)
	if err != nil {
		return nil, err
	}
	session := account.NewSession()

	var accounts *account.Service
	backend := gateway.New(e.cfg.Backend.URL,
		gateway.WithHTTPClient(&http.Client{Timeout: e.cfg.Backend.Timeout}),
		gateway.WithTokenSource(session),
		gateway.WithUnauthorizedHandler(func() { accounts.HandleUnauthorized() }),
	)
	accounts = account.NewService(backend, store, sealer, session,
		account.WithTokenTTL(time.Duration(e.cfg.Auth.TokenTTL)*24*time.Hour))

	user, err := accounts.Login(ctx, e.email, e.password)
	if err != nil {
		return nil, err
	}
	return &teacher{
		user:     user,
		backend:  backend,
		accounts: accounts,
		notifier: notify.Func(e.printNotification),
	}, nil
}

// curriculum is the offline catalog when one is configured, else the backend.
func (e *env) curriculum(t *teacher) (curriculum.Source, error) {
	if e.cfg.CurriculumPath == "" {
		return t.backend, nil
	}
	return curriculum.NewLoader(e.cfg.CurriculumPath)
}

func (e *env) printNotification(n notify.Notification) {
	fmt.Fprintf(e.errOut, "[%s] %s\n", n.Kind, n.Message)
}

// emit writes v to stdout as indented JSON.
func (e *env) emit(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportError prints err unless the workflow already showed it as a
// notification.
func (e *env) reportError(err error) {
	var (
		verr    *planner.ValidationError
		failure *planner.Failure
	)
	if errors.As(err, &verr) || errors.As(err, &failure) {
		return
	}
	fmt.Fprintf(e.errOut, "error: %v\n", err)
}
