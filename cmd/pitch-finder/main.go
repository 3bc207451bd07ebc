package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aryannaik/pitch-finder/internal/config"
	"github.com/aryannaik/pitch-finder/internal/event"
	"github.com/aryannaik/pitch-finder/internal/logging"
	"github.com/aryannaik/pitch-finder/internal/parser"
	"github.com/aryannaik/pitch-finder/internal/server"
)

var v = viper.New()

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pitch-finder",
		Short:        "Find startup pitch events, demo days and investor meetups",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("vector-db", "memory", "vector store backend: memory, sqlite or postgres")
	flags.String("data-dir", "data", "directory for local data")
	bind(root, map[string]string{
		"log-level":  "log_level",
		"log-format": "log_format",
		"vector-db":  "vector_db_type",
		"data-dir":   "data_dir",
	})

	root.AddCommand(serveCmd(), searchCmd(), parseCmd(), pruneCmd(), ingestCmd())
	return root
}

// bind ties flags to their viper keys so flags override env and .env.
func bind(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		f := cmd.PersistentFlags().Lookup(flag)
		if f == nil {
			f = cmd.Flags().Lookup(flag)
		}
		_ = v.BindPFlag(key, f)
	}
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}
	cmd.Flags().String("port", "8990", "HTTP port")
	bind(cmd, map[string]string{"port": "port"})
	return cmd
}

func runServer(a *app) error {
	srv := server.New(server.Options{
		Port:          a.cfg.Port,
		RatePerSecond: 5,
		Logger:        a.logger,
		Metrics:       a.metrics,
	}, a.searcher, a.health)

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server stopped", "error", err)
			done <- syscall.SIGTERM
		}
	}()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	go maintain(bgCtx, a)

	<-done
	stopBackground()
	a.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	a.logger.Info("goodbye")
	return nil
}

// maintain ingests feeds at startup and then prunes and re-ingests on every tick.
func maintain(ctx context.Context, a *app) {
	runMaintenance(ctx, a, false)

	ticker := time.NewTicker(a.cfg.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runMaintenance(ctx, a, true)
		}
	}
}

func runMaintenance(ctx context.Context, a *app, prune bool) {
	if prune {
		if _, err := a.searcher.Prune(ctx); err != nil {
			a.logger.Error("periodic prune failed", "error", err)
		}
	}
	if len(a.cfg.FeedURLs) == 0 {
		return
	}
	if _, err := a.searcher.IngestFeeds(ctx); err != nil {
		a.logger.Error("feed ingest failed", "error", err)
	}
}

func searchCmd() *cobra.Command {
	var (
		persona, location, region, industry, from, to string
		maxPrice                                      float64
		pitchOnly, onlineOnly, asJSON, stored         bool
		limit                                         int
	)
	cmd := &cobra.Command{
		Use:   "search <intent>",
		Short: "Search the web for pitch events and print the ranked results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := event.Query{
				Intent:     strings.Join(args, " "),
				Persona:    event.Persona(persona),
				Location:   location,
				Region:     region,
				PitchOnly:  pitchOnly,
				OnlineOnly: onlineOnly,
				MaxResults: limit,
			}
			if industry != "" {
				q.Industry = strings.Split(industry, ",")
			}
			if cmd.Flags().Changed("max-price") {
				q.MaxPrice = &maxPrice
			}
			var err error
			if q.DateFrom, err = parseDateFlag(from); err != nil {
				return err
			}
			if q.DateTo, err = parseDateFlag(to); err != nil {
				return err
			}

			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var ranked []event.Ranked
			if stored {
				ranked, err = a.searcher.Retrieve(cmd.Context(), q)
			} else {
				if err := a.cfg.RequireSearch(); err != nil {
					return err
				}
				ranked, err = a.searcher.Search(cmd.Context(), q)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(ranked)
			}
			printRanked(ranked)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&persona, "persona", "founder", "founder or investor")
	f.StringVar(&location, "location", "", "city or region to match")
	f.StringVar(&region, "region", "", "broader region used when no location is given")
	f.StringVar(&industry, "industry", "", "comma separated industries")
	f.StringVar(&from, "from", "", "earliest start date (YYYY-MM-DD)")
	f.StringVar(&to, "to", "", "latest start date (YYYY-MM-DD)")
	f.Float64Var(&maxPrice, "max-price", 0, "maximum ticket price")
	f.BoolVar(&pitchOnly, "pitch-only", false, "only events with pitch slots")
	f.BoolVar(&onlineOnly, "online-only", false, "only online events")
	f.BoolVar(&stored, "stored", false, "rank stored events without searching the web")
	f.BoolVar(&asJSON, "json", false, "print results as JSON")
	f.IntVar(&limit, "limit", 10, "maximum results")
	return cmd
}

func parseDateFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &t, nil
}

func printRanked(ranked []event.Ranked) {
	if len(ranked) == 0 {
		fmt.Println("No events found.")
		return
	}
	for i, r := range ranked {
		ev := r.Event
		fmt.Printf("%2d. %s  (%.2f)\n", i+1, ev.Title, r.Score)
		fmt.Printf("    %s", ev.StartUTC.Format("Mon Jan 2, 2006"))
		if ev.Venue.City != "" {
			fmt.Printf(" | %s", ev.Venue.City)
		} else {
			fmt.Printf(" | %s", ev.Venue.Type)
		}
		if ev.Registration.URL != "" {
			fmt.Printf(" | %s", ev.Registration.URL)
		}
		fmt.Printf("\n    %s\n", r.Explanation)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseCmd() *cobra.Command {
	var title, snippet, url, htmlFile, source string
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a single search result and print the decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			res := parser.SearchResult{Title: title, Snippet: snippet, URL: url, Source: source}
			if htmlFile != "" {
				data, err := os.ReadFile(htmlFile)
				if err != nil {
					return fmt.Errorf("read html: %w", err)
				}
				res.HTML = string(data)
			}

			tagger, err := parser.LoadTagger(cfg.TagRulesPath)
			if err != nil {
				return err
			}
			p := parser.New(parser.WithLogger(logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)), parser.WithTagger(tagger))
			return printJSON(p.Parse(res))
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "result title")
	f.StringVar(&snippet, "snippet", "", "result snippet")
	f.StringVar(&url, "url", "", "result URL")
	f.StringVar(&htmlFile, "html-file", "", "page HTML to run the JSON-LD and heuristic extractors on")
	f.StringVar(&source, "source", "cli", "source name recorded in provenance")
	return cmd
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete stored events that have ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.searcher.Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d ended events\n", n)
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch FEED_URLS and store the events they contain",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if len(a.cfg.FeedURLs) == 0 {
				return errors.New("FEED_URLS is empty")
			}
			stats, err := a.searcher.IngestFeeds(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}
