package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"savings_circle_bot/internal/app"
	"savings_circle_bot/internal/domain/errs"
)

// Handlers translates bot commands into application service calls. The sender's telegram
// id is the member id and their first name the display name.
type Handlers struct {
	communities *app.CommunityService
	admin       *app.AdminService
	wallets     *app.WalletService
	logger      *logrus.Entry
}

func NewHandlers(communities *app.CommunityService, admin *app.AdminService, wallets *app.WalletService, logger *logrus.Entry) *Handlers {
	return &Handlers{communities: communities, admin: admin, wallets: wallets, logger: logger}
}

type commandFunc func(ctx context.Context, c telebot.Context) error

// Register wires every command to b. ctx bounds the service calls made by handlers.
func (h *Handlers) Register(ctx context.Context, b *telebot.Bot) {
	commands := map[string]commandFunc{
		"/start":      h.start,
		"/help":       h.help,
		"/create":     h.create,
		"/join":       h.join,
		"/contribute": h.contribute,
		"/status":     h.status,
		"/mycircles":  h.myCircles,
		"/owed":       h.owed,
		"/reactivate": h.reactivate,
		"/vote":       h.proposeVote,

		"/balance":  h.balance,
		"/deposit":  h.deposit,
		"/withdraw": h.withdraw,
		"/transfer": h.transfer,
		"/fix":      h.fix,
		"/release":  h.release,

		"/startcycle": h.startCycle,
		"/skip":       h.skipDefaulters,
		"/finalize":   h.finalize,
		"/penalties":  h.deductPenalties,
		"/lock":       h.lockPayouts,
		"/unlock":     h.unlockPayouts,
		"/distribute": h.distribute,
	}
	for endpoint, fn := range commands {
		b.Handle(endpoint, h.bind(ctx, endpoint, fn))
	}
	b.Handle(telebot.OnCallback, h.bind(ctx, "callback", h.voteCallback))
}

func (h *Handlers) bind(ctx context.Context, endpoint string, fn commandFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if c.Sender() == nil {
			return nil
		}
		h.log(c, endpoint).Debug("Command received")
		return fn(ctx, c)
	}
}

func (h *Handlers) log(c telebot.Context, command string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"handler":   command,
		"sender_id": c.Sender().ID,
	})
}

func senderID(c telebot.Context) string {
	return strconv.FormatInt(c.Sender().ID, 10)
}

// replyError reports a failed command. Domain rejections are shown to the member as is;
// anything else is logged as an error and hidden behind a generic reply.
func replyError(c telebot.Context, logger *logrus.Entry, err error) error {
	logWithError := logger.WithError(err)
	switch errs.KindOf(err) {
	case errs.KindVersionConflict:
		logWithError.Warn("Gave up after concurrent updates")
		return c.Send("The circle is busy right now. Please try again.")
	case errs.KindUnknown:
		logWithError.Error("Command failed")
		return c.Send("Something went wrong. Please try again later.")
	default:
		logWithError.Warn("Command rejected")
		return c.Send(fmt.Sprintf("Error: %s", err.Error()))
	}
}

func parseCommunityID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%q is not a circle id", arg)
	}
	return id, nil
}

func parseAmount(arg string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(arg)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%q is not a positive amount", arg)
	}
	return amount, nil
}

// communityArg parses the circle id every community command takes as its first argument.
func communityArg(c telebot.Context, usage string) (uuid.UUID, bool, error) {
	args := c.Args()
	if len(args) < 1 {
		return uuid.Nil, false, c.Send("Usage: " + usage)
	}
	id, err := parseCommunityID(args[0])
	if err != nil {
		return uuid.Nil, false, c.Send(err.Error())
	}
	return id, true, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
