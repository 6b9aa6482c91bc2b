// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"savings_circle_bot/internal/app"
	"savings_circle_bot/internal/domain/community"
	"savings_circle_bot/internal/domain/wallet"
)

const memberHelp = "Circle commands:\n\n" +
	"`/create <name> [min_contribution] [Hourly|Daily|Weekly|Monthly]`\n - Start a new savings circle with you as admin.\n\n" +
	"`/join <circle_id>`\n - Join a circle. Late joiners pay the catch-up contribution from their wallet.\n\n" +
	"`/contribute <circle_id> [amount]`\n - Contribute to the current recipient. Without an amount the minimum is paid.\n\n" +
	"`/status <circle_id>`\n - Show the current round.\n\n" +
	"`/mycircles`\n - List your circles.\n\n" +
	"`/owed <circle_id>`\n - Show what you still owe after receiving your payout.\n\n" +
	"`/reactivate <circle_id>`\n - Pay your missed contributions and penalties to become active again.\n\n" +
	"`/vote <circle_id> <positioningMode|lockPayout|paymentPlan>`\n - Propose a rule change for the next cycle.\n\n" +
	"Wallet commands:\n\n" +
	"`/balance`, `/deposit <amount>`, `/withdraw <amount>`, `/transfer <user_id> <amount>`, `/fix <amount> <days>`, `/release`\n\n" +
	"Admin commands:\n\n" +
	"`/startcycle`, `/skip`, `/finalize`, `/distribute`, `/lock`, `/unlock` with `<circle_id>`, and `/penalties <circle_id> <user_id>`"

func (h *Handlers) start(ctx context.Context, c telebot.Context) error {
	logger := h.log(c, "/start")
	logger.Info("Processing /start command")

	w, err := h.wallets.Open(ctx, senderID(c))
	if err != nil {
		return replyError(c, logger, err)
	}
	return c.Send(fmt.Sprintf("Hi %s! Your wallet is ready with %s available. Use /help for the list of commands.",
		c.Sender().FirstName, money(w.AvailableBalance)))
}

func (h *Handlers) help(_ context.Context, c telebot.Context) error {
	return c.Send(memberHelp, &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}

func (h *Handlers) create(ctx context.Context, c telebot.Context) error {
	logger := h.log(c, "/create")
	args := c.Args()
	if len(args) < 1 || len(args) > 3 {
		return c.Send("Usage: /create <name> [min_contribution] [Hourly|Daily|Weekly|Monthly]")
	}

	in := app.CreateCommunityInput{
		Name:      args[0],
		AdminID:   senderID(c),
		AdminName: c.Sender().FirstName,
	}
	if len(args) > 1 {
		amount, err := parseAmount(args[1])
		if err != nil {
			return c.Send(err.Error())
		}
		in.Settings.MinContribution = amount
	}
	if len(args) > 2 {
		freq, ok := parseFrequency(args[2])
		if !ok {
			return c.Send(fmt.Sprintf("%q is not a contribution frequency.", args[2]))
		}
		in.Settings.ContributionFrequency = freq
	}

	created, err := h.communities.CreateCommunity(ctx, in)
	if err != nil {
		return replyError(c, logger, err)
	}
	logger.WithField("community_id", created.ID).Info("Community created from chat")
	return c.Send(fmt.Sprintf("Circle %s created. Share this id so others can join:\n%s\nThe first cycle starts once %d members have joined.",
		created.Name, created.ID, created.Settings.FirstCycleMin))
}

func parseFrequency(arg string) (community.Frequency, bool) {
	for _, f := range []community.Frequency{community.FrequencyHourly, community.FrequencyDaily, community.FrequencyWeekly, community.FrequencyMonthly} {
		if strings.EqualFold(arg, string(f)) {
			return f, true
		}
	}
	return "", false
}

func (h *Handlers) join(ctx context.Context, c telebot.Context) error {
	id, ok, err := communityArg(c, "/join <circle_id>")
	if !ok {
		return err
	}
	logger := h.log(c, "/join").WithField("community_id", id)

	m, err := h.communities.JoinCommunity(ctx, id, senderID(c), c.Sender().FirstName, "")
	if err != nil {
		return replyError(c, logger, err)
	}
	if m.Status == community.StatusWaiting {
		return c.Send(fmt.Sprintf("You joined at position %d. Your catch-up contribution was paid and you become active when the current round closes.", m.Position))
	}
	return c.Send("You joined the circle.")
}

func (h *Handlers) contribute(ctx context.Context, c telebot.Context) error {
	id, ok, err := communityArg(c, "/contribute <circle_id> [amount]")
	if !ok {
		return err
	}
	logger := h.log(c, "/contribute").WithField("community_id", id)
	args := c.Args()

	if len(args) == 1 {
		if err := h.communities.ContributeMinimum(ctx, id, senderID(c)); err != nil {
			return replyError(c, logger, err)
		}
		return c.Send("Minimum contribution recorded.")
	}

	amount, err := parseAmount(args[1])
	if err != nil {
		return c.Send(err.Error())
	}
	circle, err := h.communities.Community(ctx, id)
	if err != nil {
		return replyError(c, logger, err)
	}
	mc := circle.OpenMidCycle()
	if mc == nil {
		return replyError(c, logger, community.ErrNoActiveMidCycle)
	}
	err = h.communities.Contribute(ctx, id, senderID(c), []community.Contribution{{RecipientID: mc.NextInLine, Amount: amount}})
	if err != nil {
		return replyError(c, logger, err)
	}
	return c.Send(fmt.Sprintf("Contribution of %s recorded.", money(amount)))
}

func (h *Handlers) status(ctx context.Context, c telebot.Context) error {
	id, ok, err := communityArg(c, "/status <circle_id>")
	if !ok {
		return err
	}
	logger := h.log(c, "/status").WithField("community_id", id)

	circle, err := h.communities.Community(ctx, id)
	if err != nil {
		return replyError(c, logger, err)
	}
	return c.Send(describe(circle, senderID(c)))
}

// describe renders a circle as seen by userID.
func describe(circle *community.Community, userID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", circle.Name, circle.Settings.ContributionFrequency)
	fmt.Fprintf(&b, "Members: %d active of %d\n", len(circle.ActiveMembers()), len(circle.Members))
	fmt.Fprintf(&b, "Minimum contribution: %s\n", money(circle.Settings.MinContribution))
	fmt.Fprintf(&b, "Backup fund: %s\n", money(circle.BackupFund))

	mc := circle.OpenMidCycle()
	switch {
	case len(circle.Cycles) == 0:
		fmt.Fprintf(&b, "Waiting for %d members to start.\n", circle.Settings.FirstCycleMin)
	case mc == nil:
		b.WriteString("The cycle is complete. The next one starts at the next sweep.\n")
	default:
		fmt.Fprintf(&b, "Cycle %d, recipient %s\n", mc.CycleNumber, memberName(circle, mc.NextInLine))
		fmt.Fprintf(&b, "Collected: %s, ready: %t\n", money(community.TotalFor(mc)), mc.IsReady)
		fmt.Fprintf(&b, "Next payout: %s\n", circle.NextPayout.Format("2006-01-02 15:04"))
	}
	if circle.LockPayout {
		b.WriteString("Payouts are locked.\n")
	}

	if m := circle.Member(userID); m != nil {
		fmt.Fprintf(&b, "You: position %d, %s", m.Position, m.Status)
		if len(m.MissedContributions) > 0 {
			fmt.Fprintf(&b, ", %d missed, penalty %s", len(m.MissedContributions), money(m.Penalty))
		}
		if mc != nil && m.UserID != mc.NextInLine {
			fmt.Fprintf(&b, ", contributed %s this round", money(community.ContributedTo(mc, m.UserID, mc.NextInLine)))
		}
	}
	return b.String()
}

func memberName(circle *community.Community, userID string) string {
	if m := circle.Member(userID); m != nil && m.Name != "" {
		return m.Name
	}
	return userID
}

func (h *Handlers) myCircles(ctx context.Context, c telebot.Context) error {
	logger := h.log(c, "/mycircles")
	circles, err := h.communities.MemberCommunities(ctx, senderID(c))
	if err != nil {
		return replyError(c, logger, err)
	}
	if len(circles) == 0 {
		return c.Send("You are not in any circle yet.")
	}

	var response strings.Builder
	response.WriteString("--- Your circles ---\n")
	for _, circle := range circles {
		status := "-"
		if m := circle.Member(senderID(c)); m != nil {
			status = string(m.Status)
		}
		fmt.Fprintf(&response, "%s, id: %s, status: %s\n", circle.Name, circle.ID, status)
	}
	return c.Send(response.String())
}

func (h *Handlers) owed(ctx context.Context, c telebot.Context) error {
	id, ok, err := communityArg(c, "/owed <circle_id>")
	if !ok {
		return err
	}
	logger := h.log(c, "/owed").WithField("community_id", id)

	total, err := h.communities.TotalOwed(ctx, id, senderID(c))
	if errors.Is(err, community.ErrNoPayoutRecord) {
		return c.Send("You have not received a payout in this circle yet.")
	}
	if err != nil {
		return replyError(c, logger, err)
	}
	return c.Send(fmt.Sprintf("You still owe %s for the rest of this cycle.", money(total)))
}

func (h *Handlers) reactivate(ctx context.Context, c telebot.Context) error {
	id, ok, err := communityArg(c, "/reactivate <circle_id>")
	if !ok {
		return err
	}
	logger := h.log(c, "/reactivate").WithField("community_id", id)

	err = h.communities.Reactivate(ctx, id, senderID(c))
	switch {
	case errors.Is(err, wallet.ErrWalletNotFound):
		return c.Send("You need a funded wallet first. Send /start and /deposit.")
	case err != nil:
		return replyError(c, logger, err)
	}
	logger.WithFields(logrus.Fields{"user_id": senderID(c)}).Info("Member reactivated from chat")
	return c.Send("Welcome back, you are active again.")
}
