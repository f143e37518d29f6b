// Command fakeapi serves the in-process repair shop API on a real port so the
// CLI can be tried without a backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/repairshop-client/internal/fakeapi"
	"github.com/jrsteele09/repairshop-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var seedUsers = []users.Profile{
	{ID: "u-admin", ShopID: "shop-1", Email: "admin@shop.test", DisplayName: "Shop Admin", Role: users.RoleAdmin},
	{ID: "u-tech", ShopID: "shop-1", Email: "tech@shop.test", DisplayName: "Shop Tech", Role: users.RoleTech},
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	ttl := flag.Duration("ttl", fakeapi.DefaultTokenTTL, "access token lifetime")
	refresh := flag.Bool("refresh", false, "serve POST /auth/refresh")
	secret := flag.String("secret", "", "HS256 signing secret")
	password := flag.String("password", "password", "password for the seeded users")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	options := []fakeapi.Option{fakeapi.WithTokenTTL(*ttl), fakeapi.WithRefresh(*refresh), fakeapi.WithLogger(log.Logger)}
	if *secret != "" {
		options = append(options, fakeapi.WithSecret(*secret))
	}
	if err := run(*addr, *password, options); err != nil {
		log.Fatal().Err(err).Msg("fake API stopped")
	}
	log.Info().Msg("fake API stopped")
}

func run(addr, password string, options []fakeapi.Option) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname("Fake Repair Shop API")
	api := fakeapi.New(options...)
	for _, u := range seedUsers {
		if err := api.AddUser(u, password); err != nil {
			return err
		}
		log.Info().Str("email", u.Email).Str("role", string(u.Role)).Msg("seeded user")
	}

	server := &http.Server{Addr: addr, Handler: api, ReadHeaderTimeout: 5 * time.Second}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(server) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Str("base", fakeapi.BasePath).Msg("fake API listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
