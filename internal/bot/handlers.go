package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"blackdiamond-music/internal/music"
	"blackdiamond-music/internal/player"
	"blackdiamond-music/internal/resolver"
	"blackdiamond-music/internal/voice"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		data := interaction.ApplicationCommandData()
		if data.Name != "music" || len(data.Options) == 0 {
			return
		}
		b.handleMusicCommand(session, interaction, data.Options[0])
	case discordgo.InteractionMessageComponent:
		b.handleMusicButton(session, interaction)
	}
}

func (b *Bot) handleMusicCommand(session *discordgo.Session, interaction *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if interaction.GuildID == "" {
		b.respondEmbed(session, interaction, b.errorEmbed("Music commands only work in a server."), true)
		return
	}

	guildID := interaction.GuildID
	if requiresVoiceChannel(sub.Name) && b.requesterChannel(interaction) == "" {
		b.respondEmbed(session, interaction, b.errorEmbed("Join a voice channel first."), true)
		return
	}

	switch sub.Name {
	case "play":
		b.handlePlay(session, interaction, sub.Options[0].StringValue())
	case "skip":
		b.handleSkip(session, interaction, guildID)
	case "pause":
		b.handlePause(session, interaction, guildID)
	case "stop":
		b.handleStop(session, interaction, guildID)
	case "queue":
		page := 1
		if len(sub.Options) > 0 {
			page = int(sub.Options[0].IntValue())
		}
		b.handleQueue(session, interaction, guildID, page)
	case "shuffle":
		b.handleShuffle(session, interaction, guildID)
	case "remove":
		b.handleRemove(session, interaction, guildID, int(sub.Options[0].IntValue()))
	case "nowplaying":
		b.handleNowPlaying(session, interaction, guildID)
	case "join":
		b.handleJoin(session, interaction, guildID)
	case "leave":
		b.handleLeave(session, interaction, guildID)
	case "recent":
		b.handleRecent(session, interaction, guildID)
	case "help":
		b.respondEmbed(session, interaction, b.helpEmbed(), true)
	}
}

func (b *Bot) handleMusicButton(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		return
	}
	guildID := interaction.GuildID
	customID := interaction.MessageComponentData().CustomID

	switch customID {
	case "music_skip", "music_pause", "music_stop":
		if b.requesterChannel(interaction) == "" {
			b.respondEmbed(session, interaction, b.errorEmbed("Join a voice channel first."), true)
			return
		}
	}

	switch {
	case customID == "music_skip":
		b.handleSkip(session, interaction, guildID)
	case customID == "music_pause":
		b.handlePause(session, interaction, guildID)
	case customID == "music_stop":
		b.handleStop(session, interaction, guildID)
	case customID == "music_queue":
		b.handleQueue(session, interaction, guildID, 1)
	case strings.HasPrefix(customID, "music_queue_page:"):
		b.handleQueuePage(session, interaction, guildID, customID)
	}
}

// requiresVoiceChannel reports whether the subcommand may only be used by a
// caller who is currently in a voice channel.
func requiresVoiceChannel(name string) bool {
	switch name {
	case "play", "join", "skip", "pause", "stop", "shuffle", "remove":
		return true
	}
	return false
}

func (b *Bot) handlePlay(session *discordgo.Session, interaction *discordgo.InteractionCreate, query string) {
	guildID := interaction.GuildID
	channelID := b.requesterChannel(interaction)
	if channelID == "" {
		b.respondEmbed(session, interaction, b.errorEmbed("Join a voice channel first."), true)
		return
	}

	// Resolution hits the network, so acknowledge now and follow up after.
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.logger.Warn("interaction defer failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := b.controller.Play(ctx, guildID, channelID, query, requesterName(interaction))
	if err != nil {
		b.followupEmbed(session, interaction, b.errorEmbed(userMessage(err)))
		return
	}

	if result.Queued {
		b.followupEmbed(session, interaction, b.queuedEmbed(result))
		return
	}
	b.followupEmbedWithControls(session, interaction, b.nowPlayingEmbed(result.Track))
}

func (b *Bot) handleSkip(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string) {
	if err := b.controller.Skip(guildID); err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(userMessage(err)), true)
		return
	}
	b.respondEmbed(session, interaction, b.infoEmbed("Skipped", "Playing the next track."), false)
}

func (b *Bot) handlePause(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string) {
	status, err := b.controller.TogglePause(guildID)
	if err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(userMessage(err)), true)
		return
	}
	if status == player.StatusPaused {
		b.respondEmbed(session, interaction, b.infoEmbed("Paused", "Playback paused."), false)
		return
	}
	b.respondEmbed(session, interaction, b.infoEmbed("Resumed", "Playback resumed."), false)
}

func (b *Bot) handleStop(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string) {
	b.controller.Stop(guildID)
	b.respondEmbed(session, interaction, b.infoEmbed("Stopped", "Playback stopped and the queue was cleared."), false)
}

func (b *Bot) handleQueue(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string, page int) {
	view, err := b.controller.QueueView(guildID, page)
	if err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(userMessage(err)), true)
		return
	}
	if view.TotalPages > 1 {
		b.respondEmbedComponents(session, interaction, b.queueEmbed(view), queueNavButtons(view.Page, view.TotalPages))
		return
	}
	b.respondEmbed(session, interaction, b.queueEmbed(view), false)
}

// handleQueuePage serves the prev/next buttons by editing the queue message in
// place with the requested page.
func (b *Bot) handleQueuePage(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID, customID string) {
	page, err := strconv.Atoi(strings.TrimPrefix(customID, "music_queue_page:"))
	if err != nil {
		return
	}
	view, err := b.controller.QueueView(guildID, page)
	if err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(userMessage(err)), true)
		return
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{b.queueEmbed(view)},
			Components: queueNavButtons(view.Page, view.TotalPages),
		},
	})
}

func (b *Bot) handleShuffle(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string) {
	if err := b.controller.Shuffle(guildID); err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(userMessage(err)), true)
		return
	}
	b.respondEmbed(session, interaction, b.infoEmbed("Shuffled", "The queue order was randomized."), false)
}

func (b *Bot) handleRemove(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string, position int) {
	removed, err := b.controller.Remove(guildID, position)
	if err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(userMessage(err)), true)
		return
	}
	b.respondEmbed(session, interaction, b.infoEmbed("Removed", fmt.Sprintf("**%s** was removed from the queue.", removed.Title)), false)
}

func (b *Bot) handleNowPlaying(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string) {
	info, err := b.controller.NowPlaying(guildID)
	if err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(userMessage(err)), true)
		return
	}
	embed := b.nowPlayingEmbed(info.Track)
	if info.QueueLength > 1 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d tracks in the queue", info.QueueLength),
		}
	}
	b.respondEmbedWithControls(session, interaction, embed)
}

func (b *Bot) handleJoin(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string) {
	channelID := b.requesterChannel(interaction)
	if channelID == "" {
		b.respondEmbed(session, interaction, b.errorEmbed("Join a voice channel first."), true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := b.controller.Join(ctx, guildID, channelID); err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(userMessage(err)), true)
		return
	}
	b.respondEmbed(session, interaction, b.infoEmbed("Joined", "Connected to your voice channel."), false)
}

func (b *Bot) handleLeave(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string) {
	if err := b.controller.Leave(guildID); err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed(userMessage(err)), true)
		return
	}
	b.respondEmbed(session, interaction, b.infoEmbed("Left", "Disconnected and cleared the queue."), false)
}

func (b *Bot) handleRecent(session *discordgo.Session, interaction *discordgo.InteractionCreate, guildID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	records, err := b.store.ListRecentPlays(ctx, guildID, 10)
	if err != nil {
		b.respondEmbed(session, interaction, b.errorEmbed("Could not load play history."), true)
		return
	}
	if len(records) == 0 {
		b.respondEmbed(session, interaction, b.infoEmbed("Recently Played", "Nothing has been played yet."), true)
		return
	}
	b.respondEmbed(session, interaction, b.recentEmbed(records), false)
}

// requesterChannel returns the voice channel the invoking user is in, or empty.
func (b *Bot) requesterChannel(interaction *discordgo.InteractionCreate) string {
	if interaction.Member == nil || interaction.Member.User == nil {
		return ""
	}
	state, err := b.session.State.VoiceState(interaction.GuildID, interaction.Member.User.ID)
	if err != nil || state == nil {
		return ""
	}
	return state.ChannelID
}

func requesterName(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.Username
	}
	return "unknown"
}

func userMessage(err error) string {
	var resErr *resolver.ResolutionError
	if errors.As(err, &resErr) {
		switch resErr.Reason {
		case resolver.ReasonNoResults:
			return fmt.Sprintf("No results for **%s**.", resErr.Query)
		case resolver.ReasonNotFound:
			return "That track does not exist or is unavailable."
		case resolver.ReasonUnsupported:
			return "That track cannot be played."
		default:
			return "The media service did not respond. Try again in a moment."
		}
	}

	switch {
	case errors.Is(err, voice.ErrJoinTimeout):
		return "Could not connect to the voice channel in time."
	case errors.Is(err, voice.ErrPermissionDenied):
		return "I do not have permission to join that voice channel."
	case errors.Is(err, voice.ErrNotConnected), errors.Is(err, player.ErrNotConnected):
		return "I am not connected to a voice channel."
	case errors.Is(err, player.ErrNothingPlaying):
		return "Nothing is playing right now."
	case errors.Is(err, player.ErrQueueEmpty), errors.Is(err, music.ErrEmptyQueue):
		return "The queue is empty."
	case errors.Is(err, music.ErrInvalidPosition):
		return "There is no track at that position."
	case errors.Is(err, music.ErrInvalidPage):
		return "That queue page does not exist."
	default:
		return "Something went wrong."
	}
}
