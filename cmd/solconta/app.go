package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"solconta/internal/client"
	"solconta/internal/dashboard"
	"solconta/internal/logger"
	"solconta/internal/session"
)

var errNotSignedIn = errors.New("no has iniciado sesión, usa 'solconta login'")

// app is the wiring shared by every command.
type app struct {
	client *client.Client
	auth   *client.Auth
	ctrl   *dashboard.Controller
	loc    *time.Location
}

// newApp restores the stored session. It never fails for a missing session;
// commands that need one call requireSession.
func newApp(ctx context.Context) (*app, error) {
	loc, err := time.LoadLocation(viper.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", viper.GetString("timezone"), err)
	}

	cell := session.NewCell()
	c := client.New(viper.GetString("api_url"), &http.Client{Timeout: 15 * time.Second}, cell)
	auth := client.NewAuth(c, client.NewViperStore(viper.GetViper()))
	if err := auth.Restore(ctx); err != nil {
		logger.Get().Warnw("could not restore session", "error", err)
	}

	return &app{
		client: c,
		auth:   auth,
		ctrl:   dashboard.New(c, cell, dashboard.WithLocation(loc)),
		loc:    loc,
	}, nil
}

// load starts the controller, which fetches the user's data, and fails
// when there is no session or the fetch failed.
func (a *app) load(ctx context.Context) error {
	if a.client.Session().Current() == nil {
		return errNotSignedIn
	}
	if err := a.ctrl.Start(ctx); err != nil {
		return err
	}
	if msg := a.ctrl.Error(); msg != "" {
		return errors.New(msg)
	}
	return nil
}

func (a *app) close() {
	a.ctrl.Stop()
}

// result turns a failed operation into the command's error.
func result(res client.OpResult) error {
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}
