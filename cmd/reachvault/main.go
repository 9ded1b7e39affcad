// Command reachvault is a minimal embedding example for pkg/core: it is
// not a host, RPC server, or UI (spec.md §1 leaves that layer out of
// scope). It exists to exercise the startup sequence a real embedder
// follows — load .env and config, init the logger, construct a Core,
// auto-unlock an existing identity if possible, and print a status line
// — the same
// shape progressdb/service/cmd/progressdb/main.go uses for its own
// startup, scaled down to what a library embedder actually needs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexandrosnt/Reach-sub000/internal/config"
	"github.com/alexandrosnt/Reach-sub000/internal/logger"
	"github.com/alexandrosnt/Reach-sub000/pkg/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "reachvault:", err)
		os.Exit(1)
	}
}

func run() error {
	rc, err := config.Load("")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	config.SetRuntime(rc)

	logger.InitWithLevel(rc.LogLevel)
	defer logger.Sync()
	logger.Info("reachvault_starting", "data_dir", rc.DataDir)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := core.New(rc.DataDir)

	if !app.HasIdentity() {
		logger.Info("no_identity_found", "data_dir", rc.DataDir)
		fmt.Println("no identity found under", rc.DataDir)
		fmt.Println("an embedder would call app.InitIdentity(ctx, password) here")
		return nil
	}

	unlocked, err := app.AutoUnlock(ctx)
	if err != nil {
		logger.Warn("auto_unlock_failed", "error", err)
	}
	if !unlocked {
		fmt.Println("identity present but locked; an embedder would prompt for a password")
		fmt.Println("and call app.Unlock(ctx, password)")
		return nil
	}

	uuid, err := app.GetUserUUID()
	if err != nil {
		return fmt.Errorf("get uuid: %w", err)
	}
	logger.Info("identity_unlocked", "uuid", uuid)

	vaults := app.ListVaults(ctx)
	fmt.Printf("identity %s unlocked, %d vault(s) resolved\n", uuid, len(vaults))
	for _, v := range vaults {
		fmt.Printf("  - %s (%s) unlocked=%v\n", v.Name, v.ID, v.Unlocked)
	}

	<-ctx.Done()
	app.Lock()
	logger.Info("reachvault_shutdown")
	return nil
}
