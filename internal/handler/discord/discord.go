package discordhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

type Bot struct {
	sess    *discordgo.Session
	guildID string
	log     *slog.Logger
}

func NewBot(token, guildID string, log *slog.Logger) (*Bot, error) {
	sess, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("cannot create discord session: %w", err)
	}
	sess.Identify.Intents = discordgo.IntentsGuilds

	return &Bot{
		sess:    sess,
		guildID: guildID,
		log:     log.With(slog.String("item", "DiscordBot")),
	}, nil
}

// Session is used to build the command handler before Open.
func (b *Bot) Session() *discordgo.Session {
	return b.sess
}

// Open connects to the gateway and registers the slash commands. Interactions are served with ctx.
func (b *Bot) Open(ctx context.Context, h *commandHandler) error {
	b.sess.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		h.Handle(ctx, i)
	})
	b.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		b.log.Info("Logged in", slog.String("user", r.User.String()))
	})

	if err := b.sess.Open(); err != nil {
		return fmt.Errorf("cannot open discord session: %w", err)
	}

	if _, err := b.sess.ApplicationCommandBulkOverwrite(b.sess.State.User.ID, b.guildID, Commands()); err != nil {
		b.sess.Close()

		return fmt.Errorf("cannot register commands: %w", err)
	}

	return nil
}

func (b *Bot) Close() error {
	return b.sess.Close()
}
