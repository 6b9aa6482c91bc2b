package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/telebot.v3"
)

func (h *Handlers) balance(ctx context.Context, c telebot.Context) error {
	logger := h.log(c, "/balance")
	w, err := h.wallets.Balance(ctx, senderID(c))
	if err != nil {
		return replyError(c, logger, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available: %s\nFixed: %s\nTotal: %s", money(w.AvailableBalance), money(w.FixedBalance), money(w.TotalBalance))
	if w.IsFrozen {
		b.WriteString("\nYour wallet is frozen until you reactivate in your circle.")
	}
	for _, f := range w.FixedFunds {
		if !f.IsMatured {
			fmt.Fprintf(&b, "\n%s fixed until %s", money(f.Amount), f.EndDate.Format("2006-01-02"))
		}
	}
	return c.Send(b.String())
}

func (h *Handlers) deposit(ctx context.Context, c telebot.Context) error {
	logger := h.log(c, "/deposit")
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /deposit <amount>")
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return c.Send(err.Error())
	}
	if _, err := h.wallets.Open(ctx, senderID(c)); err != nil {
		return replyError(c, logger, err)
	}
	w, err := h.wallets.Deposit(ctx, senderID(c), amount, "deposit via bot")
	if err != nil {
		return replyError(c, logger, err)
	}
	return c.Send(fmt.Sprintf("Deposited %s. Available: %s", money(amount), money(w.AvailableBalance)))
}

func (h *Handlers) withdraw(ctx context.Context, c telebot.Context) error {
	logger := h.log(c, "/withdraw")
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /withdraw <amount>")
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return c.Send(err.Error())
	}
	w, err := h.wallets.Withdraw(ctx, senderID(c), amount, "withdrawal via bot")
	if err != nil {
		return replyError(c, logger, err)
	}
	return c.Send(fmt.Sprintf("Withdrew %s. Available: %s", money(amount), money(w.AvailableBalance)))
}

func (h *Handlers) transfer(ctx context.Context, c telebot.Context) error {
	logger := h.log(c, "/transfer")
	args := c.Args()
	if len(args) != 2 {
		return c.Send("Usage: /transfer <user_id> <amount>")
	}
	if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
		return c.Send("The recipient must be a telegram user id.")
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return c.Send(err.Error())
	}
	if err := h.wallets.Transfer(ctx, senderID(c), args[0], amount, "transfer via bot"); err != nil {
		return replyError(c, logger.WithField("recipient_id", args[0]), err)
	}
	return c.Send(fmt.Sprintf("Sent %s to %s.", money(amount), args[0]))
}

func (h *Handlers) fix(ctx context.Context, c telebot.Context) error {
	logger := h.log(c, "/fix")
	args := c.Args()
	if len(args) != 2 {
		return c.Send("Usage: /fix <amount> <days>")
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return c.Send(err.Error())
	}
	days, err := strconv.Atoi(args[1])
	if err != nil {
		return c.Send("Days must be a whole number.")
	}
	w, err := h.wallets.Fix(ctx, senderID(c), amount, days)
	if err != nil {
		return replyError(c, logger, err)
	}
	return c.Send(fmt.Sprintf("Fixed %s for %d days. Available: %s", money(amount), days, money(w.AvailableBalance)))
}

func (h *Handlers) release(ctx context.Context, c telebot.Context) error {
	logger := h.log(c, "/release")
	released, err := h.wallets.ReleaseMatured(ctx, senderID(c))
	if err != nil {
		return replyError(c, logger, err)
	}
	if released.IsZero() {
		return c.Send("No fixed funds have matured yet.")
	}
	return c.Send(fmt.Sprintf("Released %s to your available balance.", money(released)))
}
