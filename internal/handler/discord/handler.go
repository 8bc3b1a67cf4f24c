package discordhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
	"github.com/justa/mapupload/internal/service/intake"
)

const (
	CommandAddMap   = "addmap"
	CommandMapQueue = "mapqueue"

	optionMethod = "method"
	optionQuery  = "query"

	msgNoPermission = "You do not have permission for this command."
	msgGuildOnly    = "This command can only be used in a server."
	msgFailed       = "Couldn't process the request."
)

var errorMessages = []struct {
	err error
	msg string
}{
	{common.ErrInvalidReference, "Invalid Gamebanana URL."},
	{common.ErrInvalidQuery, "Invalid query."},
	{common.ErrUnknownMethod, "Unknown method."},
	{common.ErrRateLimited, "Too many requests, try again later."},
	{common.ErrUpstreamUnavailable, "Couldn't fetch data from Gamebanana API."},
	{common.ErrMalformedUpstreamPayload, "Unexpected Gamebanana API response."},
	{common.ErrAssetNotFound, "Couldn't find map on Avocado's FastDL."},
}

// Session is the part of *discordgo.Session the handler talks to.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseDelete(interaction *discordgo.Interaction, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type IntakeService interface {
	Submit(ctx context.Context, req *intake.Request) (string, error)
}

type StatusService interface {
	Status(ctx context.Context) (*entity.QueueStatus, error)
}

type commandHandler struct {
	sess   Session
	intake IntakeService
	status StatusService
	role   string
	log    *slog.Logger
}

func NewCommandHandler(sess Session, intakeSrv IntakeService, status StatusService, role string, log *slog.Logger) *commandHandler {
	return &commandHandler{
		sess:   sess,
		intake: intakeSrv,
		status: status,
		role:   role,
		log:    log.With(slog.String("handler", "CommandHandler")),
	}
}

// Commands returns the slash command definitions served by Handle.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandAddMap,
			Description: "Attempts to add a map to the gameserver.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionMethod,
					Description: "Method to use",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: intake.MethodGameBanana, Value: intake.MethodGameBanana},
						{Name: intake.MethodMirror, Value: intake.MethodMirror},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionQuery,
					Description: "Gamebanana URL or map name",
					Required:    true,
				},
			},
		},
		{
			Name:        CommandMapQueue,
			Description: "Shows the map upload queue.",
		},
	}
}

func (h *commandHandler) Handle(ctx context.Context, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch name := i.ApplicationCommandData().Name; name {
	case CommandAddMap:
		h.addMap(ctx, i.Interaction)
	case CommandMapQueue:
		h.mapQueue(ctx, i.Interaction)
	default:
		h.log.Warn("Unknown command", slog.String("command", name))
	}
}

func (h *commandHandler) addMap(ctx context.Context, i *discordgo.Interaction) {
	if i.Member == nil || i.Member.User == nil {
		h.respond(i, msgGuildOnly, true)

		return
	}

	log := h.log.With(slog.String("user", i.Member.User.ID), slog.String("channel", i.ChannelID))

	allowed, err := h.hasRole(i.GuildID, i.Member.Roles)
	if err != nil {
		log.Error("Cannot get guild roles", slog.Any("error", err))
		h.respond(i, msgFailed, true)

		return
	}

	if !allowed {
		h.respond(i, msgNoPermission, true)

		return
	}

	req := &intake.Request{
		Requester: i.Member.User.Mention(),
		Sink:      &channelNotifier{sess: h.sess, channelID: i.ChannelID},
	}
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case optionMethod:
			req.Method = opt.StringValue()
		case optionQuery:
			req.Query = opt.StringValue()
		}
	}

	// Resolving can outlast the interaction deadline.
	err = h.sess.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		log.Error("Cannot defer response", slog.Any("error", err))

		return
	}

	reply, err := h.intake.Submit(ctx, req)
	if err != nil {
		h.replyError(i, err, log)

		return
	}

	if _, err := h.sess.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &reply}); err != nil {
		log.Error("Cannot send reply", slog.Any("error", err))
	}
}

// replyError swaps the public deferred response for a private one.
func (h *commandHandler) replyError(i *discordgo.Interaction, err error, log *slog.Logger) {
	if err := h.sess.InteractionResponseDelete(i); err != nil {
		log.Warn("Cannot delete deferred response", slog.Any("error", err))
	}

	_, err = h.sess.FollowupMessageCreate(i, true, &discordgo.WebhookParams{
		Content: UserMessage(err),
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Error("Cannot send error reply", slog.Any("error", err))
	}
}

func (h *commandHandler) mapQueue(ctx context.Context, i *discordgo.Interaction) {
	status, err := h.status.Status(ctx)
	if err != nil {
		h.respond(i, msgFailed, true)

		return
	}

	h.respond(i, FormatStatus(status), true)
}

func (h *commandHandler) hasRole(guildID string, memberRoles []string) (bool, error) {
	roles, err := h.sess.GuildRoles(guildID)
	if err != nil {
		return false, err
	}

	for _, role := range roles {
		if role.Name == h.role && slices.Contains(memberRoles, role.ID) {
			return true, nil
		}
	}

	return false, nil
}

func (h *commandHandler) respond(i *discordgo.Interaction, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}

	err := h.sess.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		h.log.Error("Cannot respond", slog.Any("error", err))
	}
}

// UserMessage turns an intake error into the text shown to the requester.
func UserMessage(err error) string {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}

	return msgFailed
}

func FormatStatus(status *entity.QueueStatus) string {
	var b strings.Builder

	if status.Running {
		b.WriteString("A job is being processed.\n")
	} else {
		b.WriteString("Idle.\n")
	}

	fmt.Fprintf(&b, "Pending: %d\n", len(status.Pending))
	for n, title := range status.Pending {
		fmt.Fprintf(&b, "%d. **%s**\n", n+1, title)
	}

	if len(status.Recent) > 0 {
		b.WriteString("Recent:\n")
	}
	for _, rec := range status.Recent {
		fmt.Fprintf(&b, "- **%s** (%s) %s", rec.Title, rec.Kind, rec.Status)
		if rec.Status == entity.JobStatusFailed && rec.Stage != "" {
			fmt.Fprintf(&b, " at %s", rec.Stage)
		}
		fmt.Fprintf(&b, " in %s\n", rec.Duration().Round(time.Second))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

type channelNotifier struct {
	sess      Session
	channelID string
}

func (n *channelNotifier) Notify(ctx context.Context, message string) error {
	if _, err := n.sess.ChannelMessageSend(n.channelID, message, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("cannot send message to channel %s: %w", n.channelID, err)
	}

	return nil
}
