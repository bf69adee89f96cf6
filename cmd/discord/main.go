// cmd/discord/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/songbird/datastore"
	"github.com/keshon/songbird/internal/config"
	"github.com/keshon/songbird/internal/discord"
	"github.com/keshon/songbird/internal/logging"
	"github.com/keshon/songbird/internal/music/parsers"
	"github.com/keshon/songbird/internal/music/parsers/ffmpeg"
	"github.com/keshon/songbird/internal/music/parsers/kkdai"
	"github.com/keshon/songbird/internal/music/parsers/ytdlp"
	"github.com/keshon/songbird/internal/music/source_resolver"
	"github.com/keshon/songbird/internal/music/sources/spotify"
	"github.com/keshon/songbird/internal/music/sources/youtube"
	"github.com/keshon/songbird/internal/storage"
	v "github.com/keshon/songbird/internal/version"
	"github.com/keshon/songbird/pkg/retrylimit"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	dotenv := config.LoadDotEnv()

	cfg, err := config.New()
	if err != nil {
		log, _ := logging.New(logging.Options{})
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	log, logCloser := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logCloser.Close()
	log.Info().Str("version", v.Version).Bool("dotenv", dotenv).Msgf("starting %s bot", v.AppName)

	dsCfg := datastore.DefaultConfig(cfg.StoragePath)
	dsCfg.Logger = log
	ds, err := datastore.NewWithConfig(dsCfg)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.StoragePath).Msg("open datastore")
		return err
	}
	store := storage.New(ds)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("close storage")
		}
	}()

	httpClient := youtube.NewHTTPClient(cfg.Proxy, log)
	metadata := youtube.NewMetadata(httpClient)

	videoSearch := youtube.NewVideoSearch(httpClient)
	musicSearch := youtube.NewMusicSearch()
	pageSearch := youtube.NewPageSearch(httpClient)
	search := youtube.NewChain(log, videoSearch, musicSearch, pageSearch)
	// catalog entries match studio recordings better through music search
	catalogSearch := youtube.NewChain(log, musicSearch, videoSearch, pageSearch)

	resolver := source_resolver.New(source_resolver.Options{
		Videos:        metadata,
		Search:        search,
		CatalogSearch: catalogSearch,
		Catalog: spotify.New(spotify.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			Market:       cfg.SpotifyMarket,
			HTTPClient:   httpClient,
			Logger:       log,
		}),
		Limiter: retrylimit.NewAdaptiveLimiter(5, 1, 20, 0.5, 0.5),
		Workers: cfg.SearchWorkers,
		Logger:  log,
	})
	if !cfg.HasSpotify() {
		log.Warn().Msg("spotify credentials not set, catalog links will be rejected")
	}

	builder := parsers.NewBuilder(
		search,
		ytdlp.New(cfg.YtDlpPath, cfg.ExtractTimeout, log),
		ffmpeg.New(cfg.FFmpegPath, log),
		kkdai.New(metadata.Client(), log),
		log,
	)

	bot, err := discord.New(discord.Options{
		Config:   cfg,
		Storage:  store,
		Resolver: resolver,
		Builder:  builder,
		Metadata: metadata,
		Logger:   log,
	})
	if err != nil {
		log.Error().Err(err).Msg("create bot")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Run(ctx); err != nil {
		log.Error().Err(err).Msg("discord bot error")
		return err
	}
	log.Info().Msg("discord bot exited cleanly")
	return nil
}
