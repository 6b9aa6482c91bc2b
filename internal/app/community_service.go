package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"savings_circle_bot/internal/domain/community"
	"savings_circle_bot/internal/domain/wallet"
	"savings_circle_bot/internal/infra/metrics"
)

// CommunityService runs member-initiated community operations.
type CommunityService struct {
	core
	defaults community.Settings
}

func NewCommunityService(d Deps, defaults community.Settings) *CommunityService {
	return &CommunityService{core: newCore(d), defaults: defaults}
}

// CreateCommunityInput describes a new community. Zero-valued settings fields are
// taken from the configured defaults.
type CreateCommunityInput struct {
	Name        string
	Description string
	AdminID     string
	AdminName   string
	AdminEmail  string
	Settings    community.Settings
	Mode        community.PositioningMode
}

func (s *CommunityService) CreateCommunity(ctx context.Context, in CreateCommunityInput) (*community.Community, error) {
	var created *community.Community
	err := s.run(ctx, "create_community", func(ctx context.Context, out *outbox) error {
		c, err := community.New(in.Name, in.Description, community.Member{
			UserID: in.AdminID,
			Name:   in.AdminName,
			Email:  in.AdminEmail,
		}, s.withDefaults(in.Settings), in.Mode, s.now())
		if err != nil {
			return err
		}
		if _, err := s.walletFor(ctx, in.AdminID); err != nil {
			return err
		}
		if err := s.Communities.Create(ctx, c); err != nil {
			return fmt.Errorf("creating community: %w", err)
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"community_id": created.ID, "admin_id": in.AdminID}).Info("Community created")
	return created, nil
}

func (s *CommunityService) withDefaults(in community.Settings) community.Settings {
	out := s.defaults
	if in.ContributionFrequency != "" {
		out.ContributionFrequency = in.ContributionFrequency
	}
	if in.MaxMembers > 0 {
		out.MaxMembers = in.MaxMembers
	}
	if !in.BackupFundPercentage.IsZero() {
		out.BackupFundPercentage = in.BackupFundPercentage
	}
	if !in.MinContribution.IsZero() {
		out.MinContribution = in.MinContribution
	}
	if !in.PenaltyAmount.IsZero() {
		out.PenaltyAmount = in.PenaltyAmount
	}
	if in.NumMissContribution > 0 {
		out.NumMissContribution = in.NumMissContribution
	}
	if in.FirstCycleMin > 0 {
		out.FirstCycleMin = in.FirstCycleMin
	}
	return out
}

// JoinCommunity adds userID to the community. Once rounds have begun the catch-up
// contribution is debited from the joiner's wallet. The first cycle starts as soon as
// enough members have joined.
func (s *CommunityService) JoinCommunity(ctx context.Context, communityID uuid.UUID, userID, name, email string) (*community.Member, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	var joined community.Member
	err := s.run(ctx, "join_community", func(ctx context.Context, out *outbox) error {
		now := s.now()
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		w, err := s.walletFor(ctx, userID)
		if err != nil {
			return err
		}

		required := c.RequiredJoinContribution()
		if required.IsPositive() {
			id := c.ID
			err := w.Debit(wallet.Entry{
				Amount:      required,
				Type:        wallet.TxContribution,
				Description: "catch-up contribution to " + c.Name,
				CommunityID: &id,
			}, now)
			if err != nil {
				return fmt.Errorf("paying catch-up contribution: %w", err)
			}
		}
		m, err := c.AddMember(userID, name, email, required, now)
		if err != nil {
			return err
		}
		joined = *m
		s.notifyMembers(out, c, KindMemberJoined, "%s joined %s.", displayName(name, userID), c.Name)

		if len(c.Cycles) == 0 && len(c.ActiveMembers()) >= c.Settings.FirstCycleMin {
			mc, err := c.StartFirstCycle(now, s.Shuffler)
			if err != nil {
				return err
			}
			s.announceMidCycle(out, c, mc)
		}

		if required.IsPositive() {
			if err := s.Wallets.Save(ctx, w); err != nil {
				return err
			}
		}
		return s.Communities.Save(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"community_id": communityID, "user_id": userID, "status": joined.Status}).Info("Member joined community")
	return &joined, nil
}

// Contribute debits the member's wallet and records the contributions against the open
// mid-cycle. When every active member has funded the recipient the round becomes ready.
func (s *CommunityService) Contribute(ctx context.Context, communityID uuid.UUID, userID string, contributions []community.Contribution) error {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	total := decimal.Zero
	err := s.run(ctx, "contribute", func(ctx context.Context, out *outbox) error {
		now := s.now()
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		mc := c.OpenMidCycle()
		if mc == nil {
			return community.ErrNoActiveMidCycle
		}
		if err := c.RecordContribution(mc.ID, userID, contributions, now); err != nil {
			return err
		}
		w, err := s.Wallets.GetByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("loading wallet for %s: %w", userID, err)
		}

		sum := decimal.Zero
		for _, in := range contributions {
			sum = sum.Add(in.Amount)
		}
		id := c.ID
		err = w.Debit(wallet.Entry{
			Amount:      sum,
			Type:        wallet.TxContribution,
			Description: fmt.Sprintf("contribution to %s, cycle %d", c.Name, mc.CycleNumber),
			Recipient:   mc.NextInLine,
			CommunityID: &id,
		}, now)
		if err != nil {
			return err
		}

		wasReady := mc.IsReady
		ready, err := c.UpdateReadiness(now)
		if err != nil {
			return err
		}
		if ready && !wasReady {
			out.add(mc.NextInLine, KindPayoutReady, &id,
				"%s: everyone has contributed. Your payout of %s is scheduled for %s.",
				c.Name, mc.PayoutAmount.StringFixed(2), c.NextPayout.Format("2006-01-02 15:04"))
		}

		if err := s.Wallets.Save(ctx, w); err != nil {
			return err
		}
		total = sum
		return s.Communities.Save(ctx, c)
	})
	if err != nil {
		return err
	}
	metrics.RecordContribution(total)
	s.Log.WithFields(logrus.Fields{"community_id": communityID, "user_id": userID, "amount": total.String()}).Info("Contribution recorded")
	return nil
}

// ContributeMinimum contributes the minimum amount to the open round's recipient.
func (s *CommunityService) ContributeMinimum(ctx context.Context, communityID uuid.UUID, userID string) error {
	c, err := s.load(ctx, communityID)
	if err != nil {
		return err
	}
	mc := c.OpenMidCycle()
	if mc == nil {
		return community.ErrNoActiveMidCycle
	}
	return s.Contribute(ctx, communityID, userID, []community.Contribution{{RecipientID: mc.NextInLine, Amount: c.Settings.MinContribution}})
}

// Reactivate returns an inactive member to the community. The wallet is unfrozen and
// the reactivation amount debited from it.
func (s *CommunityService) Reactivate(ctx context.Context, communityID uuid.UUID, userID string) error {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	return s.run(ctx, "reactivate", func(ctx context.Context, out *outbox) error {
		now := s.now()
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		w, err := s.Wallets.GetByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("loading wallet for %s: %w", userID, err)
		}

		amount := c.ReactivationAmount()
		w.Unfreeze(now)
		id := c.ID
		err = w.Debit(wallet.Entry{
			Amount:      amount,
			Type:        wallet.TxContribution,
			Description: "reactivation in " + c.Name,
			CommunityID: &id,
		}, now)
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			return fmt.Errorf("%w: %w", community.ErrInsufficientContribution, err)
		}
		if err != nil {
			return err
		}
		if err := c.Reactivate(userID, amount, now); err != nil {
			return err
		}
		if _, err := c.UpdateReadiness(now); err != nil && !errors.Is(err, community.ErrNoActiveMidCycle) {
			return err
		}
		out.add(userID, KindContributionTaken, &id, "%s: you are active again. %s was taken from your wallet.", c.Name, amount.StringFixed(2))

		if err := s.Wallets.Save(ctx, w); err != nil {
			return err
		}
		return s.Communities.Save(ctx, c)
	})
}

func (s *CommunityService) ProposeVote(ctx context.Context, communityID uuid.UUID, userID string, topic community.VoteTopic) (*community.Vote, error) {
	var proposed community.Vote
	err := s.run(ctx, "propose_vote", func(ctx context.Context, out *outbox) error {
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		if m := c.Member(userID); m == nil || m.Status != community.StatusActive {
			return community.ErrNotAMember
		}
		v, err := c.ProposeVote(topic, s.now())
		if err != nil {
			return err
		}
		proposed = *v
		return s.Communities.Save(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return &proposed, nil
}

func (s *CommunityService) CastVote(ctx context.Context, communityID, voteID uuid.UUID, userID, choice string) (*community.Vote, error) {
	var result community.Vote
	err := s.run(ctx, "cast_vote", func(ctx context.Context, out *outbox) error {
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		v, err := c.CastVote(voteID, userID, choice, s.now())
		if err != nil {
			return err
		}
		result = *v
		if v.Resolved {
			s.notifyMembers(out, c, KindVoteResolved, "%s: the vote on %s resolved to %q. It applies when the current cycle ends.", c.Name, v.Topic, v.Resolution)
		}
		return s.Communities.Save(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Community returns the current state of a community.
func (s *CommunityService) Community(ctx context.Context, id uuid.UUID) (*community.Community, error) {
	return s.load(ctx, id)
}

// MemberCommunities lists the communities userID belongs to.
func (s *CommunityService) MemberCommunities(ctx context.Context, userID string) ([]*community.Community, error) {
	cs, err := s.Communities.ListByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing communities for %s: %w", userID, err)
	}
	return cs, nil
}

func (s *CommunityService) TotalOwed(ctx context.Context, communityID uuid.UUID, userID string) (decimal.Decimal, error) {
	c, err := s.load(ctx, communityID)
	if err != nil {
		return decimal.Zero, err
	}
	return c.CalculateTotalOwed(userID)
}

func displayName(name, userID string) string {
	if name != "" {
		return name
	}
	return userID
}
