package bot

import (
	"fmt"
	"strings"
	"time"

	"blackdiamond-music/internal/music"
	"blackdiamond-music/internal/storage"
	"blackdiamond-music/internal/track"
	"blackdiamond-music/internal/utils"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) nowPlayingEmbed(t track.Track) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: fmt.Sprintf("**%s**", t.Title),
		Color:       b.cfg.Embeds.Player,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: utils.FormatDuration(t.DurationSeconds), Inline: true},
			{Name: "Uploader", Value: valueOr(t.Uploader, "Unknown"), Inline: true},
			{Name: "Requested by", Value: valueOr(t.RequestedBy, "Unknown"), Inline: true},
		},
	}
	if t.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.ThumbnailURL}
	}
	return embed
}

func (b *Bot) queuedEmbed(result music.PlayResult) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Added to Queue",
		Description: fmt.Sprintf("**%s**", result.Track.Title),
		Color:       b.cfg.Embeds.Info,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Position", Value: fmt.Sprintf("%d", result.Position), Inline: true},
			{Name: "Duration", Value: utils.FormatDuration(result.Track.DurationSeconds), Inline: true},
		},
	}
}

func (b *Bot) queueEmbed(view music.QueuePage) *discordgo.MessageEmbed {
	var lines []string
	for _, entry := range view.Entries {
		marker := ""
		if entry.Position == 1 && view.NowPlaying != nil {
			marker = " (playing)"
		}
		lines = append(lines, fmt.Sprintf("`%d.` **%s** [%s]%s",
			entry.Position, entry.Track.Title,
			utils.FormatDuration(entry.Track.DurationSeconds), marker))
	}

	return &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: strings.Join(lines, "\n"),
		Color:       b.cfg.Embeds.Info,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d • %d tracks • %s total",
				view.Page, view.TotalPages, view.TotalTracks,
				utils.FormatDuration(view.TotalDurationSeconds)),
		},
	}
}

func (b *Bot) recentEmbed(records []storage.PlayRecord) *discordgo.MessageEmbed {
	var lines []string
	for i, record := range records {
		lines = append(lines, fmt.Sprintf("`%d.` **%s** by %s", i+1, record.Title, record.RequestedBy))
	}
	return &discordgo.MessageEmbed{
		Title:       "Recently Played",
		Description: strings.Join(lines, "\n"),
		Color:       b.cfg.Embeds.Info,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func (b *Bot) helpEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Music Commands",
		Color: b.cfg.Embeds.Info,
		Description: strings.Join([]string{
			"`/music play <query>` Play a link or search for a song",
			"`/music skip` Skip the current track",
			"`/music pause` Pause or resume playback",
			"`/music stop` Stop and clear the queue",
			"`/music queue [page]` Show the queue",
			"`/music shuffle` Shuffle upcoming tracks",
			"`/music remove <position>` Remove a track",
			"`/music nowplaying` Show the current track",
			"`/music join` Join your voice channel",
			"`/music leave` Leave the voice channel",
			"`/music recent` Show recently played tracks",
		}, "\n"),
	}
}

func (b *Bot) infoEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       b.cfg.Embeds.Info,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func (b *Bot) errorEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Error",
		Description: description,
		Color:       b.cfg.Embeds.Error,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func controlButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Skip", Style: discordgo.PrimaryButton, CustomID: "music_skip"},
				discordgo.Button{Label: "Pause", Style: discordgo.SecondaryButton, CustomID: "music_pause"},
				discordgo.Button{Label: "Stop", Style: discordgo.DangerButton, CustomID: "music_stop"},
				discordgo.Button{Label: "Queue", Style: discordgo.SecondaryButton, CustomID: "music_queue"},
			},
		},
	}
}

func queueNavButtons(page, totalPages int) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Previous",
					Style:    discordgo.SecondaryButton,
					CustomID: fmt.Sprintf("music_queue_page:%d", page-1),
					Disabled: page <= 1,
				},
				discordgo.Button{
					Label:    "Next",
					Style:    discordgo.SecondaryButton,
					CustomID: fmt.Sprintf("music_queue_page:%d", page+1),
					Disabled: page >= totalPages,
				},
			},
		},
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) respondEmbedWithControls(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	b.respondEmbedComponents(session, interaction, embed, controlButtons())
}

func (b *Bot) respondEmbedComponents(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components []discordgo.MessageComponent) {
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: components,
		},
	})
}

func (b *Bot) followupEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	_, _ = session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
}

func (b *Bot) followupEmbedWithControls(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	_, _ = session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: controlButtons(),
	})
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
