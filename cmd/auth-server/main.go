package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"

	"github.com/greenfolio/auth-core/csrf"
	"github.com/greenfolio/auth-core/csrf/redisstore"
	"github.com/greenfolio/auth-core/internal/config"
	"github.com/greenfolio/auth-core/server"
	"github.com/greenfolio/auth-core/sessions"
	sessionredisrepo "github.com/greenfolio/auth-core/sessions/redisrepo"
	fakesessionrepo "github.com/greenfolio/auth-core/sessions/repofakes"
	"github.com/greenfolio/auth-core/token/refresh"
	refreshredisrepo "github.com/greenfolio/auth-core/token/refresh/redisrepo"
	fakerefreshrepo "github.com/greenfolio/auth-core/token/refresh/repofake"
	fakeuserrepo "github.com/greenfolio/auth-core/users/repofake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	srv, err := buildServer(c)
	if err != nil {
		return fmt.Errorf("buildServer: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildServer(c config.Config) (*server.Server, error) {
	userRepo := fakeuserrepo.NewFakeUserRepo()

	var (
		sessionRepo sessions.Repo = fakesessionrepo.NewFakeSessionRepo()
		refreshRepo refresh.Repo  = fakerefreshrepo.NewFakeRefreshTokenRepo()
		csrfStore   csrf.Store    = csrf.NewMemoryStore()
	)
	if redisURL := c.GetRedisURL(); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		sessionRepo = sessionredisrepo.New(client)
		refreshRepo = refreshredisrepo.New(client, c.GetRefreshTokenExpiry())
		csrfStore = redisstore.New(client)
	}

	tokens := refresh.NewManager(refreshRepo, userRepo, c)
	csrfService := csrf.NewService(csrfStore, csrf.WithTTL(c.GetCSRFTokenTTL()))

	repos := server.Repos{
		Users:    userRepo,
		Sessions: sessionRepo,
		Metrics:  &server.StaticMetricsRepo{ByPeriod: map[string]server.Metrics{}},
	}
	return server.New(c, repos, tokens, csrfService)
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
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
