package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"last30days/bird"
	"last30days/cache"
	"last30days/config"
	"last30days/dedupe"
	"last30days/digest"
	"last30days/excerpt"
	"last30days/pipeline"
	"last30days/probe"
	"last30days/rank"
	"last30days/reddit"
	"last30days/research"
	"last30days/scheduler"
	"last30days/webnews"
)

func main() {
	modeFlag := flag.String("mode", "compact", "emission mode: compact or full")
	depthFlag := flag.String("depth", "default", "research depth: quick, default, or deep")
	intentFlag := flag.String("intent", "", "topic intent: recommendations, news, prompting-technique, or general")
	toolFlag := flag.String("tool", "", "tool or product the topic is about")
	configFlag := flag.String("config", "", "path to YAML config file")
	outFlag := flag.String("out", "", "write the digest to a file instead of stdout")
	noCacheFlag := flag.Bool("no-cache", false, "skip cache reads (results are still stored)")
	excerptsFlag := flag.Bool("excerpts", false, "fetch readable excerpts for top web posts")
	dailyFlag := flag.String("daily", "", "repeat the run daily at HH:MM instead of once")
	timezoneFlag := flag.String("timezone", "", "timezone for -daily (defaults to config)")
	logLevelFlag := flag.String("log-level", "", "log level: debug, info, warn, or error")
	flag.Usage = usage
	flag.Parse()

	// .env is optional and never overrides the real environment.
	_ = godotenv.Load()

	// Logs go to stderr so the digest on stdout pipes cleanly.
	setLogLevel("info")

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if *logLevelFlag != "" {
		level = *logLevelFlag
	}
	setLogLevel(level)

	subject := strings.Join(flag.Args(), " ")
	intent, err := research.ParseIntent(*intentFlag)
	if err != nil {
		slog.Error("invalid query", "error", err)
		os.Exit(1)
	}
	depth, err := research.ParseDepth(*depthFlag)
	if err != nil {
		slog.Error("invalid query", "error", err)
		os.Exit(1)
	}
	mode, err := digest.ParseMode(*modeFlag)
	if err != nil {
		slog.Error("invalid query", "error", err)
		os.Exit(1)
	}

	// Reject a malformed topic before probing or fetching anything. Daily
	// runs rebuild the topic with a fresh anchor at each firing.
	if _, err := research.NewTopic(subject, *toolFlag, intent, depth, time.Now().UTC()); err != nil {
		slog.Error("invalid query", "error", err)
		usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := bird.NewRunner()
	httpClient := &http.Client{Timeout: 2 * time.Minute}

	redditFetcher := reddit.NewFetcher(
		reddit.NewSearcher(cfg.OpenAIKey, cfg.OpenAIModel, httpClient),
		reddit.NewHydrator(httpClient),
	)
	birdFetcher := bird.NewFetcher(bird.NewClient(runner, cfg.BirdPath))
	newsClient := webnews.NewClient(httpClient)
	if cfg.NewsFeedURL != "" {
		newsClient = webnews.NewClientWithFeedURL(httpClient, cfg.NewsFeedURL)
	}
	webFetcher := webnews.NewFetcher(newsClient)
	fetchers := []pipeline.Fetcher{redditFetcher, birdFetcher, webFetcher}

	scorer := rank.NewScorer(cfg.RepostWeight)
	deduper := dedupe.New(cfg.SimilarityThreshold, scorer.Score)

	store := openCache(cfg)
	if store != nil {
		defer store.Close()
	}

	runOnce := func(ctx context.Context) error {
		now := time.Now().UTC()
		topic, err := research.NewTopic(subject, *toolFlag, intent, depth, now)
		if err != nil {
			return err
		}
		slog.Info("research starting",
			"subject", topic.Subject,
			"depth", topic.Depth,
			"intent", topic.Intent,
			"window_from", topic.FromDate(),
			"window_to", topic.ToDate())

		avail := probe.Run(ctx, probe.Config{
			OpenAIKey: cfg.OpenAIKey,
			BirdPath:  cfg.BirdPath,
			Disabled:  cfg.Disabled(),
		}, runner)
		slog.Info("probe complete",
			"reddit", avail.Reddit.Usable,
			"x", avail.X.Usable,
			"web", avail.Web.Usable)

		var usable []research.Platform
		for _, platform := range research.Platforms() {
			if avail.For(platform).Usable {
				usable = append(usable, platform)
			}
		}

		key := cache.Key(topic, usable)
		if store != nil && !*noCacheFlag {
			cached, err := store.Get(key, now)
			if err != nil {
				slog.Warn("cache read failed", "error", err)
			} else if cached != nil {
				slog.Info("cache hit", "key", key, "run_id", cached.RunID)
				return emit(cached, mode, cfg.RepresentativePosts, *outFlag)
			}
		}

		bundle, err := pipeline.New(fetchers, avail, scorer, deduper).Run(ctx, topic)
		if err != nil {
			return err
		}

		if *excerptsFlag {
			enricher := excerpt.NewEnricher(excerpt.NewExtractor(30 * time.Second))
			enricher.Enrich(ctx, bundle.Posts.Web, cfg.RepresentativePosts)
		}

		if store != nil {
			if err := store.Put(key, bundle, now); err != nil {
				slog.Warn("cache write failed", "error", err)
			}
		}

		return emit(bundle, mode, cfg.RepresentativePosts, *outFlag)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	daily := *dailyFlag
	if daily == "" {
		daily = cfg.DailyTime
	}
	if daily != "" {
		tz := cfg.Timezone
		if *timezoneFlag != "" {
			tz = *timezoneFlag
		}
		sched, err := scheduler.New(tz)
		if err != nil {
			slog.Error("failed to create scheduler", "error", err)
			os.Exit(1)
		}
		if err := sched.Schedule(daily, func() {
			if err := runOnce(ctx); err != nil {
				slog.Error("scheduled research run failed", "error", err)
			}
		}); err != nil {
			slog.Error("failed to schedule research run", "error", err)
			os.Exit(1)
		}
		sched.Start()
		slog.Info("daily mode started", "time", daily, "timezone", tz, "next_run", sched.NextRun())

		<-ctx.Done()
		sched.Stop()
		slog.Info("shutdown complete")
		return
	}

	if err := runOnce(ctx); err != nil {
		slog.Error("research failed", "error", err)
		os.Exit(1)
	}
}

// openCache opens the bundle cache, degrading to uncached operation when
// the directory or database cannot be used.
func openCache(cfg config.Config) *cache.Store {
	dir := cfg.CacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			slog.Warn("cache disabled: no cache directory", "error", err)
			return nil
		}
		dir = filepath.Join(base, "last30days")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("cache disabled", "dir", dir, "error", err)
		return nil
	}
	store, err := cache.New(cache.DBPath(dir), cfg.CacheTTL())
	if err != nil {
		slog.Warn("cache disabled", "dir", dir, "error", err)
		return nil
	}
	return store
}

// emit writes the digest to stdout or, when outPath is set, to a file
// truncated per run.
func emit(bundle *research.Bundle, mode digest.Mode, representative int, outPath string) error {
	if outPath == "" {
		return digest.Emit(os.Stdout, bundle, mode, representative)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file %s: %w", outPath, err)
	}
	if err := digest.Emit(f, bundle, mode, representative); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: last30days [flags] <topic...>

Researches what Reddit, X, and the web said about a topic in the last
30 days and emits a JSON digest on stdout.

Flags:
`)
	flag.PrintDefaults()
}

func setLogLevel(level string) {
	opts := &slog.HandlerOptions{}
	switch level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
}
