// internal/infra/telegram/vote_response_handlers.go
package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/telebot.v3"

	"savings_circle_bot/internal/domain/community"
)

// Callback data is limited to 64 bytes, so ids travel as raw base64 of their 16 bytes:
// vote|<community>|<vote>|<choice>
const votePrefix = "vote"

func voteCallbackData(communityID, voteID uuid.UUID, choice string) string {
	return strings.Join([]string{
		votePrefix,
		base64.RawURLEncoding.EncodeToString(communityID[:]),
		base64.RawURLEncoding.EncodeToString(voteID[:]),
		choice,
	}, "|")
}

func parseVoteCallback(data string) (communityID, voteID uuid.UUID, choice string, err error) {
	parts := strings.Split(data, "|")
	if len(parts) != 4 || parts[0] != votePrefix {
		return uuid.Nil, uuid.Nil, "", fmt.Errorf("invalid vote callback data: %q", data)
	}
	if communityID, err = decodeID(parts[1]); err != nil {
		return uuid.Nil, uuid.Nil, "", err
	}
	if voteID, err = decodeID(parts[2]); err != nil {
		return uuid.Nil, uuid.Nil, "", err
	}
	return communityID, voteID, parts[3], nil
}

func decodeID(s string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id in callback: %w", err)
	}
	return uuid.FromBytes(raw)
}

func voteKeyboard(communityID uuid.UUID, v *community.Vote) *telebot.ReplyMarkup {
	row := make([]telebot.InlineButton, 0, len(v.Options))
	for _, option := range v.Options {
		row = append(row, telebot.InlineButton{Text: option, Data: voteCallbackData(communityID, v.ID, option)})
	}
	return &telebot.ReplyMarkup{InlineKeyboard: [][]telebot.InlineButton{row}}
}

func (h *Handlers) proposeVote(ctx context.Context, c telebot.Context) error {
	usage := "/vote <circle_id> <positioningMode|lockPayout|paymentPlan>"
	id, ok, err := communityArg(c, usage)
	if !ok {
		return err
	}
	args := c.Args()
	if len(args) != 2 {
		return c.Send("Usage: " + usage)
	}
	logger := h.log(c, "/vote").WithField("community_id", id)

	v, err := h.communities.ProposeVote(ctx, id, senderID(c), community.VoteTopic(args[1]))
	if err != nil {
		return replyError(c, logger, err)
	}
	logger.WithField("vote_id", v.ID).Info("Vote proposed")
	return c.Send(fmt.Sprintf("Vote on %s opened. Members choose below; the result applies when the current cycle ends.", v.Topic), voteKeyboard(id, v))
}

func (h *Handlers) voteCallback(ctx context.Context, c telebot.Context) error {
	data := c.Callback().Data
	logger := h.log(c, "callback")

	communityID, voteID, choice, err := parseVoteCallback(data)
	if err != nil {
		logger.WithError(err).Warn("Unhandled callback")
		return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
	}

	v, err := h.communities.CastVote(ctx, communityID, voteID, senderID(c), choice)
	if err != nil {
		logger.WithError(err).WithField("vote_id", voteID).Warn("Vote rejected")
		return c.Respond(&telebot.CallbackResponse{Text: err.Error()})
	}
	if v.Resolved {
		return c.Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("Vote closed: %s", v.Resolution)})
	}
	return c.Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("Your vote for %s was counted.", choice)})
}
