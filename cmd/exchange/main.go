package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"matchcore/internal/adapter"
	"matchcore/internal/bus"
	"matchcore/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	symbol := flag.String("symbol", "XYZ", "instrument this engine instance matches")
	workers := flag.Int("publish-workers", 1, "deferred-publish worker count; delivery is always single-goroutine and in-order (spec.md §5), so values above 1 only produce a startup warning")
	verbose := flag.Bool("verbose", false, "enable debug-level logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// The real publish/subscribe bus is an external collaborator
	// (out of scope to implement); MemoryBus stands in as the concrete
	// downstream here, wrapped in a DeferredPublisher so the adapter's
	// re-entrancy guarantee holds even with a trivial downstream.
	downstream := bus.NewMemoryBus()
	publisher := bus.NewDeferredPublisher(downstream, *workers)
	publisher.Start()
	defer publisher.Stop()

	// Constructing the Adapter stands up its engine and wires every
	// callback to the publisher above; inbound request events reach it
	// through whatever real bus subscription replaces MemoryBus.
	_ = adapter.New(common.Symbol(*symbol), publisher, bus.WallClock{})

	log.Info().
		Str("symbol", *symbol).
		Int("publishWorkers", *workers).
		Msg("matching core online")

	<-ctx.Done()
	log.Info().Msg("shutting down")
}
