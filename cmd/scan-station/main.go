package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/backoffice-backend/internal/products"
	"github.com/angelmondragon/backoffice-backend/internal/scanqueue"
	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	"github.com/angelmondragon/backoffice-backend/pkg/env"
	"github.com/angelmondragon/backoffice-backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("base-url", env.First("http://localhost:8080", "BACKOFFICE_LOOKUP_BASE_URL"), "back-office API base url")
	movement := flag.String("type", string(enums.MovementTypeEntry), "movement type: entry|exit")
	duplicates := flag.String("duplicates", string(scanqueue.DuplicatePolicyDrop), "duplicate policy: drop|queue")
	drainDelay := flag.Duration("drain-delay", scanqueue.DefaultDrainDelay, "pause between lookups")
	lookupTimeout := flag.Duration("lookup-timeout", scanqueue.DefaultLookupTimeout, "per-lookup timeout")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logg := logger.New(logger.Options{
		ServiceName: "scan-station",
		Level:       logger.ParseLevel(*logLevel),
		Output:      os.Stderr,
	})

	movementType, err := enums.ParseMovementType(*movement)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -type: %v\n", err)
		os.Exit(2)
	}
	policy, err := scanqueue.ParseDuplicatePolicy(*duplicates)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -duplicates: %v\n", err)
		os.Exit(2)
	}

	lookup, err := products.NewHTTPLookup(*baseURL, products.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -base-url: %v\n", err)
		os.Exit(2)
	}

	st, err := newStation(lookup, os.Stdout, stationOptions{
		MovementType: movementType,
		Logger:       logg,
		Queue: scanqueue.Options{
			DrainDelay:      *drainDelay,
			LookupTimeout:   *lookupTimeout,
			DuplicatePolicy: policy,
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to start scan station", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stdout, "scanning %s against %s (:cart, :clear, :quit)\n", movementType, *baseURL)
	if err := st.run(ctx, os.Stdin); err != nil {
		logg.Error(ctx, "scan station stopped", err)
		os.Exit(1)
	}
}
