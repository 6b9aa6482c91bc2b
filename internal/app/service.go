package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"savings_circle_bot/internal/domain/community"
	"savings_circle_bot/internal/domain/wallet"
	"savings_circle_bot/internal/infra/metrics"
	"savings_circle_bot/internal/infra/retry"
)

// Deps are the collaborators shared by the application services.
type Deps struct {
	Communities community.Repository
	Wallets     wallet.Repository
	Tx          Transactor
	Notifier    Notifier
	Locks       *WalletLocks
	Clock       clockwork.Clock
	Retry       retry.Config
	Shuffler    community.Shuffler
	Log         *logrus.Entry
}

// core runs operations as retried, transactional units and delivers their
// notifications once the unit has committed.
type core struct {
	Deps
}

func newCore(d Deps) core {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Shuffler == nil {
		d.Shuffler = globalShuffler{}
	}
	if d.Locks == nil {
		d.Locks = NewWalletLocks()
	}
	if d.Log == nil {
		d.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if d.Retry.MaxAttempts == 0 {
		d.Retry = retry.DefaultConfig()
	}
	return core{Deps: d}
}

// globalShuffler uses the concurrency-safe top-level math/rand/v2 source.
type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

type message struct {
	userID      string
	kind        NotificationKind
	text        string
	communityID *uuid.UUID
}

// outbox collects notifications produced by one attempt of an operation.
type outbox struct {
	messages []message
}

func (o *outbox) add(userID string, kind NotificationKind, communityID *uuid.UUID, format string, args ...any) {
	o.messages = append(o.messages, message{userID: userID, kind: kind, text: fmt.Sprintf(format, args...), communityID: communityID})
}

// run executes fn in a transaction, retrying version conflicts. Notifications are sent
// only after the final attempt commits.
func (s *core) run(ctx context.Context, op string, fn func(ctx context.Context, out *outbox) error) error {
	var out *outbox
	attempt := 0
	err := retry.Do(ctx, s.Retry, func() error {
		attempt++
		if attempt > 1 {
			metrics.VersionConflictsTotal.WithLabelValues(op).Inc()
			s.Log.WithFields(logrus.Fields{"operation": op, "attempt": attempt}).Debug("Retrying after version conflict")
		}
		out = &outbox{}
		return s.Tx.WithinTx(ctx, func(ctx context.Context) error {
			return fn(ctx, out)
		})
	})
	metrics.RecordOperation(op, err)
	if err != nil {
		return err
	}
	s.deliver(ctx, out)
	return nil
}

func (s *core) deliver(ctx context.Context, out *outbox) {
	if s.Notifier == nil {
		return
	}
	for _, m := range out.messages {
		if err := s.Notifier.Notify(ctx, m.userID, m.kind, m.text, m.communityID); err != nil {
			s.Log.WithError(err).WithFields(logrus.Fields{
				"user_id": m.userID,
				"kind":    m.kind,
			}).Warn("Failed to deliver notification")
		}
	}
}

func (s *core) now() time.Time {
	return s.Clock.Now()
}

// walletFor loads userID's wallet, creating it when missing.
func (s *core) walletFor(ctx context.Context, userID string) (*wallet.Wallet, error) {
	w, err := s.Wallets.GetByUserID(ctx, userID)
	if errors.Is(err, wallet.ErrWalletNotFound) {
		w = wallet.New(userID, s.now())
		if err := s.Wallets.Create(ctx, w); err != nil {
			return nil, fmt.Errorf("creating wallet for %s: %w", userID, err)
		}
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading wallet for %s: %w", userID, err)
	}
	return w, nil
}

// optionalWallet loads userID's wallet, returning nil when the user has none.
func (s *core) optionalWallet(ctx context.Context, userID string) (*wallet.Wallet, error) {
	w, err := s.Wallets.GetByUserID(ctx, userID)
	if errors.Is(err, wallet.ErrWalletNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading wallet for %s: %w", userID, err)
	}
	return w, nil
}

func (s *core) load(ctx context.Context, id uuid.UUID) (*community.Community, error) {
	c, err := s.Communities.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading community %s: %w", id, err)
	}
	return c, nil
}

func (s *core) notifyMembers(out *outbox, c *community.Community, kind NotificationKind, format string, args ...any) {
	id := c.ID
	for _, m := range c.ActiveMembers() {
		out.add(m.UserID, kind, &id, format, args...)
	}
}

func (s *core) announceMidCycle(out *outbox, c *community.Community, mc *community.MidCycle) {
	if mc == nil {
		return
	}
	recipient := mc.NextInLine
	if m := c.Member(recipient); m != nil && m.Name != "" {
		recipient = m.Name
	}
	s.notifyMembers(out, c, KindMidCycleStarted,
		"%s: a new round of cycle %d has started. Contribute at least %s to %s before %s.",
		c.Name, mc.CycleNumber, c.Settings.MinContribution.StringFixed(2), recipient, c.NextPayout.Format("2006-01-02 15:04"))
}
