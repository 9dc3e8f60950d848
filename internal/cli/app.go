package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"

	"consola.app/internal/apiclient"
	"consola.app/internal/config"
	"consola.app/internal/credstore"
	"consola.app/internal/guard"
	"consola.app/internal/notify"
	"consola.app/internal/session"
)

// app is the wired console for one command invocation.
type app struct {
	cfg    config.Config
	state  *session.Store
	client *apiclient.Client
	svc    *session.Service
	router *guard.Router
	feed   *notify.Feed
	db     *sql.DB
}

func newApp(ctx context.Context, opts *RootOptions, notices io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.Profile != "" {
		cfg.Profile = opts.Profile
	}
	if opts.APIURL != "" {
		cfg.APIURL = opts.APIURL
	}

	a := &app{cfg: cfg, feed: notify.NewFeed(notify.WithWriter(notices))}
	creds, err := a.openStore(ctx, opts)
	if err != nil {
		return nil, err
	}

	base, err := apiclient.ParseBase(cfg.APIURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.state = session.NewStore()
	tr := apiclient.NewTransport(base, a.state, nil)
	a.client, err = apiclient.New(base.String(), &http.Client{Transport: tr, Timeout: cfg.HTTPTimeout})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.router = guard.NewRouter(a.state, a.feed)
	a.svc, err = session.NewService(a.state, creds, a.client,
		session.WithNavigator(a.router.Nav),
		session.WithNotifier(a.feed),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	tr.OnRejection(a.svc.HandleRejection)
	return a, nil
}

func (a *app) openStore(ctx context.Context, opts *RootOptions) (credstore.Store, error) {
	switch a.cfg.Store {
	case config.StoreMemory:
		return credstore.NewMemoryStore(), nil
	case config.StoreSQL:
		db, err := credstore.OpenSQL(a.cfg.StoreDSN)
		if err != nil {
			return nil, fmt.Errorf("open credential database: %w", err)
		}
		a.db = db
		store, err := credstore.NewSQLStore(db, a.cfg.Profile)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		return store, nil
	default:
		path := opts.Credentials
		if path == "" {
			var err error
			if path, err = credstore.DefaultPath(a.cfg.Profile); err != nil {
				return nil, err
			}
		}
		return credstore.NewFileStore(path), nil
	}
}

// requireSession restores the persisted session or fails with a user error.
func (a *app) requireSession(ctx context.Context) error {
	if a.svc.Restore(ctx) {
		return nil
	}
	return NewExitError(ExitFailure, "No hay una sesión activa. Ejecute `console login`.")
}

func (a *app) Close() {
	if a.svc != nil {
		a.svc.Wait()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
