package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ahinestrog/mybookstore-storefront/internal/api"
	"github.com/ahinestrog/mybookstore-storefront/internal/config"
	"github.com/ahinestrog/mybookstore-storefront/internal/events"
	"github.com/ahinestrog/mybookstore-storefront/internal/session"
	"github.com/ahinestrog/mybookstore-storefront/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app holds what the commands share. Connections are opened on first use so that
// commands which do not need them never touch the database or the broker.
type app struct {
	envFile string
	profile string

	cfg  config.Config
	repo *session.SQLiteRepository
	api  *api.Client
	pub  *events.Rabbit
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "MyBookStore storefront: browse, cart, wishlist, checkout and admin dashboards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.cfg = config.Load(a.envFile)
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional dotenv file")
	root.PersistentFlags().StringVar(&a.profile, "profile", "default", "name the session is stored under")

	root.AddCommand(
		newServeCmd(a),
		newLoginCmd(a), newLogoutCmd(a), newWhoamiCmd(a), newRegisterCmd(a),
		newBooksCmd(a), newCartCmd(a), newWishlistCmd(a), newCheckoutCmd(a),
		newContactCmd(a), newAdminCmd(a),
	)
	return wrapErrors(root)
}

// wrapErrors prints command errors once, through the logger.
func wrapErrors(root *cobra.Command) *cobra.Command {
	for _, c := range root.Commands() {
		wrapRunE(c)
	}
	return root
}

func wrapRunE(c *cobra.Command) {
	if run := c.RunE; run != nil {
		c.RunE = func(cmd *cobra.Command, args []string) error {
			err := run(cmd, args)
			if err != nil {
				log.Error().Err(err).Str("cmd", cmd.CommandPath()).Msg("command failed")
			}
			return err
		}
	}
	for _, sub := range c.Commands() {
		wrapRunE(sub)
	}
}

func (a *app) client() *api.Client {
	if a.api == nil {
		a.api = api.New(a.cfg.APIBaseURL, a.cfg.APITimeout)
	}
	return a.api
}

func (a *app) sessions() (*session.SQLiteRepository, error) {
	if a.repo == nil {
		repo, err := session.NewSQLiteRepository(a.cfg.SessionDBPath)
		if err != nil {
			return nil, err
		}
		a.repo = repo
	}
	return a.repo, nil
}

func (a *app) events() events.Publisher {
	if a.pub == nil && a.cfg.RabbitURL != "" {
		pub, err := events.NewRabbit(a.cfg.RabbitURL, a.cfg.EventsExchange)
		if err != nil {
			log.Warn().Err(err).Msg("events disabled")
			return nil
		}
		a.pub = pub
	}
	if a.pub == nil {
		return nil
	}
	return a.pub
}

func (a *app) close() {
	if a.repo != nil {
		a.repo.Close()
	}
	if a.pub != nil {
		a.pub.Close()
	}
}

// current loads the stored session for the active profile. A missing one is the
// anonymous session, not an error.
func (a *app) current(ctx context.Context) (session.Session, error) {
	repo, err := a.sessions()
	if err != nil {
		return session.Session{}, err
	}
	s, err := repo.Get(ctx, a.profile)
	if errors.Is(err, session.ErrNotFound) {
		return session.Session{}, nil
	}
	return s, err
}

// printNotices writes store notices as one line each.
func printNotices(w io.Writer) store.Notifier {
	return store.NotifierFunc(func(n store.Notice) {
		mark := "ok"
		if n.Kind != store.KindSuccess {
			mark = "!!"
		}
		fmt.Fprintf(w, "%s %s\n", mark, n.Message)
	})
}

// openStore builds and loads a store for the active profile.
func (a *app) openStore(cmd *cobra.Command) (*store.Store, session.Source, error) {
	ctx := cmd.Context()
	cur, err := a.current(ctx)
	if err != nil {
		return nil, nil, err
	}
	src := session.Static(cur)
	st := store.New(a.client(), src,
		store.WithNotifier(printNotices(cmd.ErrOrStderr())),
		store.WithEvents(a.events()))
	if err := st.Load(ctx); err != nil {
		return nil, nil, err
	}
	return st, src, nil
}
