// Command eta-dump polls every stop of one route once and writes the
// arrivals as a GTFS-Realtime TripUpdates feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pannnnl/hkbus-eta/internal/catalog"
	"github.com/pannnnl/hkbus-eta/internal/config"
	"github.com/pannnnl/hkbus-eta/internal/eta"
	"github.com/pannnnl/hkbus-eta/internal/fetch"
	"github.com/pannnnl/hkbus-eta/internal/models"
	"github.com/pannnnl/hkbus-eta/internal/source"
	"github.com/pannnnl/hkbus-eta/internal/source/ctb"
	"github.com/pannnnl/hkbus-eta/internal/source/kmb"
	"github.com/pannnnl/hkbus-eta/internal/stops"
)

var (
	flagRoute     = flag.String("route", "", "route number to dump (required)")
	flagOperator  = flag.String("operator", "", "only this operator (KMB or CTB)")
	flagDirection = flag.String("direction", "outbound", "outbound or inbound")
	flagVariant   = flag.String("variant", models.DefaultServiceVariant, "service variant")
	flagOutput    = flag.String("o", "", "output file (default stdout)")
	flagReadable  = flag.Bool("readable", false, "dump output in human-readable format")
	flagTimeout   = flag.Duration("timeout", 2*time.Minute, "overall deadline")
)

func main() {
	flag.Parse()
	if *flagRoute == "" {
		flag.Usage()
		os.Exit(2)
	}

	dir, err := models.ParseDirection(*flagDirection)
	if err != nil {
		log.Fatal(err)
	}
	var onlyOperator models.Operator
	if *flagOperator != "" {
		if onlyOperator, err = models.ParseOperator(*flagOperator); err != nil {
			log.Fatal(err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()

	client := fetch.NewClient(nil, fetch.Options{
		MaxAttempts: cfg.FetchMaxAttempts,
		Backoff:     cfg.FetchBackoff,
		Timeout:     cfg.FetchTimeout,
	})
	registry := source.NewRegistry(
		kmb.New(client, cfg.KMBBaseURL),
		ctb.New(client, cfg.CTBBaseURL, cfg.CTBOperatorTag),
	)

	cat := catalog.New()
	if err := catalog.NewBuilder(registry, cat).Build(ctx); err != nil {
		log.Fatal(err)
	}

	routes, err := cat.Resolve(*flagRoute)
	if err != nil {
		log.Fatal(err)
	}

	board := eta.New(registry, eta.Options{PollInterval: time.Hour, TickInterval: time.Hour})
	defer board.Close()

	loader := stops.NewLoader(registry, cat, cfg.StopFetchConcurrency)
	polled := 0
	for _, route := range routes {
		if route.Direction != dir || route.ServiceVariant != *flagVariant {
			continue
		}
		if onlyOperator != "" && route.Operator != onlyOperator {
			continue
		}

		links, err := loader.Load(ctx, route, dir)
		if err != nil {
			log.Printf("%s %s: %v", route.Operator, route.Code, err)
			continue
		}
		for _, link := range links {
			if _, err := board.Expand(route, link.StopID); err != nil {
				log.Fatal(err)
			}
			board.Refresh(eta.KeyFor(route, link.StopID))
			polled++
		}
	}
	if polled == 0 {
		log.Fatalf("no stops found for route %s %s", *flagRoute, dir)
	}
	log.Printf("Polled %d stops", polled)

	data, err := eta.MarshalFeed(board.Feed(), *flagReadable)
	if err != nil {
		log.Fatal(err)
	}
	if err := writeOutput(data); err != nil {
		log.Fatal(err)
	}
}

func writeOutput(data []byte) error {
	if *flagOutput == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*flagOutput, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *flagOutput, err)
	}
	return nil
}
