package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"savings_circle_bot/internal/app"
	"savings_circle_bot/internal/domain/community"
)

// Admin commands. Authorization is enforced by AdminService against the circle's admin id.

func (h *Handlers) adminError(c telebot.Context, logger *logrus.Entry, err error) error {
	if errors.Is(err, app.ErrAdminNotAuthorized) {
		logger.Warn("Unauthorized access attempt")
		return c.Send("Error: only the circle admin can do this.")
	}
	return replyError(c, logger, err)
}

func (h *Handlers) startCycle(ctx context.Context, c telebot.Context) error {
	id, ok, err := communityArg(c, "/startcycle <circle_id>")
	if !ok {
		return err
	}
	logger := h.log(c, "/startcycle").WithField("community_id", id)

	mc, err := h.admin.StartFirstCycle(ctx, senderID(c), id)
	if err != nil {
		return h.adminError(c, logger, err)
	}
	logger.WithField("mid_cycle_id", mc.ID).Info("First cycle started")
	return c.Send(fmt.Sprintf("Cycle %d started. First recipient: %s.", mc.CycleNumber, mc.NextInLine))
}

func (h *Handlers) skipDefaulters(ctx context.Context, c telebot.Context) error {
	id, ok, err := communityArg(c, "/skip <circle_id>")
	if !ok {
		return err
	}
	logger := h.log(c, "/skip").WithField("community_id", id)

	skipped, err := h.admin.SkipDefaulters(ctx, senderID(c), id)
	if err != nil {
		return h.adminError(c, logger, err)
	}
	if !skipped {
		return c.Send("The current recipient is in good standing, nothing to skip.")
	}
	return c.Send("The defaulting recipient was skipped and contributions moved to the next member.")
}

func (h *Handlers) finalize(ctx context.Context, c telebot.Context) error {
	id, ok, err := communityArg(c, "/finalize <circle_id>")
	if !ok {
		return err
	}
	logger := h.log(c, "/finalize").WithField("community_id", id)

	mc, err := h.admin.FinalizeCycle(ctx, senderID(c), id)
	if err != nil {
		return h.adminError(c, logger, err)
	}
	return c.Send(fmt.Sprintf("Cycle %d started. First recipient: %s.", mc.CycleNumber, mc.NextInLine))
}

func (h *Handlers) deductPenalties(ctx context.Context, c telebot.Context) error {
	id, ok, err := communityArg(c, "/penalties <circle_id> <user_id>")
	if !ok {
		return err
	}
	args := c.Args()
	if len(args) != 2 {
		return c.Send("Usage: /penalties <circle_id> <user_id>")
	}
	logger := h.log(c, "/penalties").WithFields(logrus.Fields{"community_id": id, "member_id": args[1]})

	taken, err := h.admin.DeductPenalties(ctx, senderID(c), id, args[1])
	if err != nil {
		return h.adminError(c, logger, err)
	}
	if !taken.IsPositive() {
		return c.Send(fmt.Sprintf("Nothing was deducted from %s.", args[1]))
	}
	logger.WithField("amount", taken.String()).Info("Penalties deducted")
	return c.Send(fmt.Sprintf("Deducted %s from %s.", money(taken), args[1]))
}

func (h *Handlers) lockPayouts(ctx context.Context, c telebot.Context) error {
	return h.setPayoutLock(ctx, c, "/lock", true)
}

func (h *Handlers) unlockPayouts(ctx context.Context, c telebot.Context) error {
	return h.setPayoutLock(ctx, c, "/unlock", false)
}

func (h *Handlers) setPayoutLock(ctx context.Context, c telebot.Context, command string, locked bool) error {
	id, ok, err := communityArg(c, command+" <circle_id>")
	if !ok {
		return err
	}
	logger := h.log(c, command).WithField("community_id", id)

	if err := h.admin.SetPayoutLock(ctx, senderID(c), id, locked); err != nil {
		return h.adminError(c, logger, err)
	}
	if locked {
		return c.Send("Payouts are locked until /unlock.")
	}
	return c.Send("Payouts are unlocked.")
}

func (h *Handlers) distribute(ctx context.Context, c telebot.Context) error {
	id, ok, err := communityArg(c, "/distribute <circle_id>")
	if !ok {
		return err
	}
	logger := h.log(c, "/distribute").WithField("community_id", id)

	payout, err := h.admin.Distribute(ctx, senderID(c), id)
	if errors.Is(err, community.ErrNoMidCycleReady) {
		return c.Send("The current round is not ready for payout yet.")
	}
	if err != nil {
		return h.adminError(c, logger, err)
	}
	return c.Send(fmt.Sprintf("Paid %s to %s.", money(payout.Amount), payout.RecipientID))
}
