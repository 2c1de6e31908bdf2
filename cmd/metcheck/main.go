package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Terapyy18/ArtGuessr/internal/catalogue"
	appcfg "github.com/Terapyy18/ArtGuessr/internal/config"
	"github.com/Terapyy18/ArtGuessr/internal/domain"
	"github.com/Terapyy18/ArtGuessr/internal/prefetch"
	"github.com/Terapyy18/ArtGuessr/internal/validator"
)

type checker struct {
	cfg    *appcfg.AppConfig
	client *catalogue.Client
	prober *catalogue.ImageProber
	val    *validator.Validator
}

// metcheck verifies the catalogue is reachable: one search, one lookup, one image probe.
func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	prober := catalogue.NewImageProber(cfg.ProbeTimeout, nil)
	ck := &checker{
		cfg: cfg,
		client: catalogue.NewClient(cfg.MetBaseURL,
			catalogue.WithTimeout(cfg.HTTPTimeout),
			catalogue.WithRateLimit(cfg.MetRateLimit, max(1, int(cfg.MetRateLimit))),
		),
		prober: prober,
		val:    validator.New(prober, nil),
	}

	app := &cli.App{
		Name:  "metcheck",
		Usage: "probe the museum catalogue the quiz depends on",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "overall deadline"},
		},
		Action: ck.smoke,
		Commands: []*cli.Command{
			{
				Name:   "smoke",
				Usage:  "search, then look up and probe the first playable candidate",
				Flags:  []cli.Flag{&cli.IntFlag{Name: "samples", Value: 5, Usage: "lookups to try"}},
				Action: ck.smoke,
			},
			{
				Name:      "lookup",
				Usage:     "fetch one object and report whether it is playable",
				ArgsUsage: "<objectID>",
				Action:    ck.lookup,
			},
			{
				Name:      "probe",
				Usage:     "HEAD an image url",
				ArgsUsage: "<url>",
				Action:    ck.probe,
			},
			{
				Name:   "prefetch",
				Usage:  "build a full pool the way a new game does",
				Action: ck.prefetch,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func (ck *checker) deadline(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration("timeout"))
}

func (ck *checker) smoke(c *cli.Context) error {
	ctx, cancel := ck.deadline(c)
	defer cancel()

	started := time.Now()
	ids, err := ck.client.SearchIDs(ctx, catalogue.PaintingQuery())
	if err != nil {
		return fmt.Errorf("/search: %w", err)
	}
	log.Printf("/search ok: %d ids in %s", len(ids), time.Since(started).Round(time.Millisecond))
	if len(ids) == 0 {
		log.Println("no ids returned; skipping lookup")
		return nil
	}

	samples := c.Int("samples")
	if samples <= 0 {
		samples = 5
	}
	for _, id := range ids[:min(samples, len(ids))] {
		a, err := ck.fetch(ctx, id)
		if err != nil {
			log.Printf("/objects/%d error: %v", id, err)
			continue
		}
		ck.report(ctx, a)
		return nil
	}
	return fmt.Errorf("no lookup succeeded")
}

func (ck *checker) lookup(c *cli.Context) error {
	n, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || n <= 0 {
		return fmt.Errorf("lookup needs a positive object id")
	}
	ctx, cancel := ck.deadline(c)
	defer cancel()
	a, err := ck.fetch(ctx, domain.ArtworkID(n))
	if err != nil {
		return fmt.Errorf("/objects/%d: %w", n, err)
	}
	ck.report(ctx, a)
	return nil
}

func (ck *checker) probe(c *cli.Context) error {
	url := c.Args().First()
	if url == "" {
		return fmt.Errorf("probe needs a url")
	}
	ctx, cancel := ck.deadline(c)
	defer cancel()
	started := time.Now()
	reachable := ck.prober.Reachable(ctx, url)
	log.Printf("HEAD reachable=%t in %s: %s", reachable, time.Since(started).Round(time.Millisecond), url)
	return nil
}

func (ck *checker) prefetch(c *cli.Context) error {
	ctx, cancel := ck.deadline(c)
	defer cancel()
	p := prefetch.New(ck.client, ck.val, prefetch.Config{
		Query:       catalogue.PaintingQuery(),
		PoolSize:    ck.cfg.PoolSize,
		Oversample:  ck.cfg.OversampleFactor,
		Concurrency: ck.cfg.FetchConcurrency,
	})
	pool, st, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("prefetch: %w", err)
	}
	log.Printf("prefetch ok in %s: found=%d candidates=%d failed=%d rejected=%d playable=%d pool=%d",
		st.Elapsed.Round(time.Millisecond), st.Found, st.Candidates, st.Failed, st.Rejected, st.Playable, len(pool))
	for i, a := range pool {
		log.Printf("%2d. %d %q by %q (%d)", i+1, a.ID, a.Title, a.Artist, a.Year)
	}
	return nil
}

func (ck *checker) fetch(ctx context.Context, id domain.ArtworkID) (*domain.Artwork, error) {
	started := time.Now()
	a, err := ck.client.LookupByID(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Printf("/objects/%d ok in %s: %q by %q (%d)", id, time.Since(started).Round(time.Millisecond), a.Title, a.Artist, a.Year)
	return a, nil
}

func (ck *checker) report(ctx context.Context, a *domain.Artwork) {
	started := time.Now()
	reachable := ck.prober.Reachable(ctx, a.ImageURL)
	log.Printf("HEAD image reachable=%t in %s: %s", reachable, time.Since(started).Round(time.Millisecond), a.ImageURL)
	log.Printf("playable=%t", ck.val.Playable(ctx, a))
}
