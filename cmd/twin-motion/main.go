// twin-motion is a local twin of the Motion backend API. It serves the auth,
// saved-events, profile, and event lookup endpoints from memory, plus the
// /admin control plane, so the smoke runner can be exercised offline.
//
// Integration method: point base_url (or MOTION_SMOKE_BASE_URL) at it.
// Default port: 4300
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/motion-backend/motion-smoke/internal/admin"
	"github.com/motion-backend/motion-smoke/internal/motion/api"
	"github.com/motion-backend/motion-smoke/internal/motion/store"
	"github.com/motion-backend/motion-smoke/internal/twincore"
)

func main() {
	cfg, err := twincore.ParseFlags("twin-motion", 4300, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	twin := twincore.New(cfg)
	memStore := store.New()

	if cfg.SeedFile != "" {
		if err := memStore.LoadSeedFile(cfg.SeedFile); err != nil {
			log.Fatalf("failed to load seed data: %v", err)
		}
		twin.Logger.Info("loaded seed data", "file", cfg.SeedFile, "users", memStore.Users.Len(), "events", memStore.Events.Len())
	}

	tokens := api.NewTokenIssuer(cfg.JWTSecret, memStore.Clock)
	if tokens == nil {
		twin.Logger.Warn("no -jwt-secret set; sign-in responses will carry no token")
	}

	api.NewHandler(memStore, twin.Middleware(), tokens).Routes(twin.Router)
	admin.NewHandler(memStore, twin.Middleware(), memStore.Clock).Routes(twin.Router)

	twin.Logger.Info("twin-motion ready", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := twin.Serve(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
