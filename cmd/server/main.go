package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"

	crosspost "github.com/goliatone/go-crosspost"
	"github.com/goliatone/go-crosspost/platform/bluesky"
	"github.com/goliatone/go-crosspost/platform/linkedin"
	"github.com/goliatone/go-crosspost/repository"
)

func main() {
	cfg, err := crosspost.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := crosspost.OpenDB(cfg.DatabasePath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	repos := repository.NewManager(db)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	linkedinProvider := linkedin.New(linkedin.Config{
		ClientID:     cfg.LinkedInClientID,
		ClientSecret: cfg.LinkedInClientSecret,
		CallbackURL:  cfg.LinkedInCallbackURL(),
		HTTPClient:   httpClient,
	})

	blueskyProvider := bluesky.New(bluesky.Config{
		ServiceURL: cfg.BlueskyServiceURL,
		HTTPClient: httpClient,
	})

	tokenManager := crosspost.NewTokenManager(repos.ConnectedAccounts(), linkedinProvider)

	publisher := crosspost.NewPublisher(
		repos.ConnectedAccounts(),
		tokenManager,
		linkedinProvider,
		blueskyProvider,
		crosspost.WithPlatformTimeout(cfg.RequestTimeout),
	)

	tokenService := crosspost.NewTokenService([]byte(cfg.SigningKey), cfg.TokenTTLHours, "crosspost", nil)
	authenticator := crosspost.NewAuthenticator(repos.Users(), tokenService, nil)
	currentUser := crosspost.CookieSessionResolver(tokenService, "session")

	authController := crosspost.NewAuthController(authenticator, repos.Users(), crosspost.AuthControllerConfig{
		SessionTTL:  time.Duration(cfg.TokenTTLHours) * time.Hour,
		CurrentUser: currentUser,
	}, nil)

	settingsController := crosspost.NewSettingsController(
		repos.ConnectedAccounts(),
		repos.OAuthStates(),
		tokenManager,
		linkedinProvider,
		blueskyProvider,
		crosspost.SettingsControllerConfig{
			FrontendURL: cfg.FrontendURL,
			CurrentUser: currentUser,
		},
		nil,
	)

	publishController := crosspost.NewPublishController(publisher, crosspost.PublishControllerConfig{
		CurrentUser: currentUser,
	}, nil)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	authController.RegisterRoutes(srv.Router().Group("/auth"))
	settingsController.RegisterRoutes(srv.Router().Group("/settings"))
	publishController.RegisterRoutes(srv.Router().Group("/"))

	log.Printf("listening on :3001")
	if err := srv.Serve(":3001"); err != nil {
		log.Fatal(err)
	}
}
