package bot

import (
	"context"
	"time"

	"blackdiamond-music/internal/config"
	"blackdiamond-music/internal/music"
	"blackdiamond-music/internal/player"
	"blackdiamond-music/internal/queue"
	"blackdiamond-music/internal/resolver"
	"blackdiamond-music/internal/storage"
	"blackdiamond-music/internal/track"
	"blackdiamond-music/internal/voice"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	session    *discordgo.Session
	store      *storage.Store
	queues     *queue.Store
	controller *music.Controller
	stopCh     chan struct{}
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, queues *queue.Store, res *resolver.Resolver) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates

	gateway := newDiscordGateway(session, logger)
	audio := newDCAPlayer(gateway, logger)
	manager := voice.NewManager(gateway,
		time.Duration(cfg.Voice.JoinTimeoutSeconds)*time.Second,
		time.Duration(cfg.Voice.ReconnectGraceSeconds)*time.Second,
		logger)
	engine := player.NewEngine(queues, res, audio, manager, logger)
	controller := music.NewController(queues, res, manager, engine, cfg.Queue.PageSize, logger)

	b := &Bot{
		cfg:        cfg,
		logger:     logger,
		session:    session,
		store:      store,
		queues:     queues,
		controller: controller,
		stopCh:     make(chan struct{}),
	}

	engine.SetPlayHook(func(guildID string, t track.Track) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := b.store.AddPlay(ctx, storage.PlayRecord{
			GuildID:     guildID,
			Title:       t.Title,
			SourceURL:   t.SourceURL,
			RequestedBy: t.RequestedBy,
			PlayedAt:    time.Now(),
		})
		if err != nil {
			b.logger.Warn("play history write failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	})

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startHistoryCleanup()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	close(b.stopCh)
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) startHistoryCleanup() {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if err := b.store.CleanupPlays(ctx, b.cfg.RetentionDays); err != nil {
					b.logger.Warn("play history cleanup failed", zap.Error(err))
				}
				cancel()
			case <-b.stopCh:
				return
			}
		}
	}()
}
