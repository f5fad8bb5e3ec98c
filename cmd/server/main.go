package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/aweso807-blip/syncb/internal/adapters/http"
	"github.com/aweso807-blip/syncb/internal/app"
	"github.com/aweso807-blip/syncb/internal/config"
	"github.com/aweso807-blip/syncb/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	clock := clockwork.NewRealClock()
	store := core.NewStore(clock)
	registry := app.NewRegistry()
	chat := app.NewRateLimiter(clock, cfg.ChatLimit, cfg.ChatInterval)
	relay := app.NewRelay(store, registry, clock, chat)

	r := router.SetupRouter(ctx, cfg, relay, store)

	ln, addr, err := listenWithFallback(cfg.Port, cfg.PortAttempts)
	if err != nil {
		log.Fatal().Err(err).Msg("no listen port available")
	}

	srv := &http.Server{Handler: r}

	go func() {
		log.Info().Str("addr", addr).Msg("sync relay started")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	registry.CancelAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// listenWithFallback walks successive ports when the preferred one is taken.
// Bind exhaustion is the single fatal condition of the process.
func listenWithFallback(startPort, attempts int) (net.Listener, string, error) {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		addr := fmt.Sprintf(":%d", startPort+i)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, addr, nil
		}
		lastErr = err
		log.Warn().Err(err).Str("addr", addr).Msg("port in use, retrying on next")
		time.Sleep(50 * time.Millisecond)
	}
	return nil, "", fmt.Errorf("exhausted %d listen attempts from port %d: %w", attempts, startPort, lastErr)
}
