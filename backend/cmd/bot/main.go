package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cogbot/backend/internal/adapter"
	"cogbot/backend/internal/cogs/availability"
	"cogbot/backend/internal/cogs/chat"
	"cogbot/backend/internal/cogs/greeting"
	"cogbot/backend/internal/cogs/linkrewrite"
	"cogbot/backend/internal/cogs/medal"
	"cogbot/backend/internal/cogs/minecraft"
	"cogbot/backend/internal/cogs/nfo"
	"cogbot/backend/internal/constants"
	"cogbot/backend/internal/discord"
	"cogbot/backend/internal/store"
	"cogbot/backend/pkg/config"
	"cogbot/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	if err := logger.Init(cfg.Env, cfg.Debug); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Discord bot...")

	if cfg.DiscordBotToken == "" {
		log.Fatal("DISCORD_BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	settings, closeStore, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open settings store", zap.Error(err))
	}
	defer closeStore()

	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Fatal("Failed to create Discord session", zap.Error(err))
	}

	cogs, closers, err := buildCogs(cfg, dg, settings, log)
	if err != nil {
		log.Fatal("Failed to set up cogs", zap.Error(err))
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	handler := discord.NewHandler(cfg.CommandPrefix, log)
	handler.Register(cogs...)

	dg.AddHandler(handler.HandleMessage)
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info("Connected to Discord",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)),
		)
		if err := handler.Start(ctx); err != nil {
			log.Error("Failed to start cogs", zap.Error(err))
		}
	})

	// MessageContent is privileged and must be enabled for the application
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := dg.Open(); err != nil {
			return fmt.Errorf("open Discord connection: %w", err)
		}
		log.Info("Discord bot is running. Press CTRL-C to exit.")
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down Discord bot...")
		handler.Stop()
		return dg.Close()
	})

	if err := g.Wait(); err != nil {
		log.Error("Bot stopped with error", zap.Error(err))
	}
}

// buildCogs creates every cog not disabled in the cog file. closers must be
// closed on shutdown.
func buildCogs(cfg *config.Config, session discord.Session, st store.Store, log *zap.Logger) ([]discord.Cog, []io.Closer, error) {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	var cogs []discord.Cog
	var closers []io.Closer

	enabled := func(name string) bool {
		if !cfg.Cogs.Enabled(name) {
			log.Info("Cog disabled", zap.String("cog", name))
			return false
		}
		return true
	}

	if enabled(constants.CogAvailability) {
		cogs = append(cogs, availability.New(session, st, httpClient, log))
	}

	if enabled(constants.CogNFO) {
		var images nfo.ImageSource
		if cfg.HasXrelCredentials() {
			images = nfo.NewXrelClient(cfg.XrelBaseURL, cfg.XrelClientID, cfg.XrelClientSecret, cfg.HTTPTimeout)
		} else {
			log.Warn("CLIENT_ID/CLIENT_SECRET not set, NFOs are only available as text")
		}
		n := nfo.New(images, nfo.NewSrrdbClient(cfg.SrrdbBaseURL, httpClient), cfg.HTTPTimeout, log)
		cogs = append(cogs, n)
		closers = append(closers, n)
	}

	if enabled(constants.CogGreeting) {
		w, err := greeting.New(cfg.Cogs.Greeting, log)
		if err != nil {
			return nil, nil, err
		}
		cogs = append(cogs, w)
		closers = append(closers, w)
	}

	if enabled(constants.CogLinkRewrite) {
		cogs = append(cogs, linkrewrite.New(log))
	}

	if enabled(constants.CogMedal) {
		cogs = append(cogs, medal.New(cfg.Cogs.Medal, log))
	}

	if enabled(constants.CogMinecraft) {
		rcon := minecraft.NewRCON(cfg.RconAddress, cfg.RconPassword, cfg.HTTPTimeout)
		cogs = append(cogs, minecraft.New(rcon, cfg.Cogs.Kicker, cfg.HTTPTimeout, log))
	}

	if enabled(constants.CogChat) {
		factory := func(apiKey string) chat.Completer {
			return adapter.NewChatAdapter(cfg.PerplexityBaseURL, apiKey, cfg.ChatTimeout)
		}
		cogs = append(cogs, chat.New(st, cfg.PerplexityAPIKey, factory, cfg.ChatTimeout, log))
	}

	return cogs, closers, nil
}
