package community

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// VoteTopic is a community rule members can vote to change between cycles.
type VoteTopic string

const (
	TopicPositioningMode VoteTopic = "positioningMode"
	TopicLockPayout      VoteTopic = "lockPayout"
	TopicPaymentPlan     VoteTopic = "paymentPlan"
)

// Options lists the valid choices for the topic, in tie-break order.
func (t VoteTopic) Options() []string {
	switch t {
	case TopicPositioningMode:
		return []string{string(PositioningRandom), string(PositioningFixed)}
	case TopicLockPayout:
		return []string{"false", "true"}
	case TopicPaymentPlan:
		return []string{string(PlanFull), string(PlanIncremental), string(PlanShortfall)}
	default:
		return nil
	}
}

// Ballot is one member's choice.
type Ballot struct {
	UserID string `json:"userId"`
	Choice string `json:"choice"`
}

// Vote is a proposal on a single topic.
type Vote struct {
	ID         uuid.UUID `json:"id"`
	Topic      VoteTopic `json:"topic"`
	Options    []string  `json:"options"`
	Ballots    []Ballot  `json:"votes"`
	Resolved   bool      `json:"resolved"`
	Resolution string    `json:"resolution"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (v *Vote) hasVoted(userID string) bool {
	for _, b := range v.Ballots {
		if b.UserID == userID {
			return true
		}
	}
	return false
}

func (v *Vote) validChoice(choice string) bool {
	for _, o := range v.Options {
		if o == choice {
			return true
		}
	}
	return false
}

// ProposeVote opens a vote on topic.
func (c *Community) ProposeVote(topic VoteTopic, now time.Time) (*Vote, error) {
	options := topic.Options()
	if options == nil {
		return nil, ErrInvalidVoteChoice
	}
	c.Votes = append(c.Votes, Vote{
		ID:        uuid.New(),
		Topic:     topic,
		Options:   options,
		CreatedAt: now,
	})
	c.touch(now)
	return &c.Votes[len(c.Votes)-1], nil
}

// CastVote records an active member's ballot. Once every active member has voted the
// vote resolves to the majority choice, ties going to the earliest option.
func (c *Community) CastVote(voteID uuid.UUID, userID, choice string, now time.Time) (*Vote, error) {
	v := c.vote(voteID)
	if v == nil {
		return nil, ErrVoteNotFound
	}
	if v.Resolved {
		return nil, ErrVoteResolved
	}
	m := c.Member(userID)
	if m == nil {
		return nil, ErrNotAMember
	}
	if m.Status != StatusActive {
		return nil, ErrMemberInactive
	}
	if v.hasVoted(userID) {
		return nil, ErrAlreadyVoted
	}
	if !v.validChoice(choice) {
		return nil, ErrInvalidVoteChoice
	}

	v.Ballots = append(v.Ballots, Ballot{UserID: userID, Choice: choice})
	if c.allActiveVoted(v) {
		v.Resolved = true
		v.Resolution = tally(v)
	}
	c.touch(now)
	return v, nil
}

func (c *Community) allActiveVoted(v *Vote) bool {
	for _, m := range c.ActiveMembers() {
		if !v.hasVoted(m.UserID) {
			return false
		}
	}
	return true
}

func tally(v *Vote) string {
	counts := make(map[string]int, len(v.Options))
	for _, b := range v.Ballots {
		counts[b.Choice]++
	}
	winner, best := "", -1
	for _, o := range v.Options {
		if counts[o] > best {
			winner, best = o, counts[o]
		}
	}
	return winner
}

// ApplyResolvedVotes applies every resolved vote and removes it. Only allowed while no
// cycle is active. Returns the number applied.
func (c *Community) ApplyResolvedVotes(now time.Time) (int, error) {
	if c.ActiveCycle() != nil {
		return 0, ErrCycleActive
	}

	applied := 0
	var pending []Vote
	for _, v := range c.Votes {
		if !v.Resolved {
			pending = append(pending, v)
			continue
		}
		if err := c.applyVote(v); err != nil {
			return applied, err
		}
		applied++
	}
	c.Votes = pending
	if applied > 0 {
		c.touch(now)
	}
	return applied, nil
}

func (c *Community) applyVote(v Vote) error {
	switch v.Topic {
	case TopicPositioningMode:
		mode := PositioningMode(v.Resolution)
		if mode != PositioningRandom && mode != PositioningFixed {
			return ErrInvalidPositioningMode
		}
		c.PositioningMode = mode
	case TopicLockPayout:
		locked, err := strconv.ParseBool(v.Resolution)
		if err != nil {
			return ErrInvalidVoteChoice
		}
		c.LockPayout = locked
	case TopicPaymentPlan:
		plan := PaymentPlanType(v.Resolution)
		for i := range c.Members {
			c.Members[i].PaymentPlan.Type = plan
		}
	default:
		return ErrInvalidVoteChoice
	}
	return nil
}

func (c *Community) vote(id uuid.UUID) *Vote {
	for i := range c.Votes {
		if c.Votes[i].ID == id {
			return &c.Votes[i]
		}
	}
	return nil
}
