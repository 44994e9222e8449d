// cmd/reconcile runs a reconciliation or cost allocation once and prints the
// result as JSON. Usage:
//
//	go run ./cmd/reconcile -full
//	go run ./cmd/reconcile -acquisition <uuid> [-method proportional_to_market_value]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/config"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/infra"
	"github.com/Danmoreng/mtg-pwa-sub001/internal/router"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	full := flag.Bool("full", false, "reconcile every outstanding scan and sale")
	acquisition := flag.String("acquisition", "", "acquisition id to (re)allocate")
	method := flag.String("method", "", "allocation method; empty keeps the stored one")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if !*full && *acquisition == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// No Redis: price cache invalidation is skipped, which a one-off run
	// never needs.
	svcs := router.NewServices(cfg, db, nil)

	var out interface{}
	if *acquisition != "" {
		id, err := uuid.Parse(*acquisition)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid acquisition id")
		}
		out, err = svcs.Allocator.AllocateAcquisitionCosts(ctx, id, *method)
		if err != nil {
			log.Fatal().Err(err).Msg("allocation failed")
		}
	} else {
		out, err = svcs.Reconciler.RunFullReconciler(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("reconciliation failed")
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
