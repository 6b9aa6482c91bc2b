package app

import (
	"context"

	"github.com/google/uuid"
)

// Transactor groups the repository writes made through ctx into one all-or-nothing unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NotificationKind tags a notification so sinks can format or filter it.
type NotificationKind string

const (
	KindMidCycleStarted   NotificationKind = "mid_cycle_started"
	KindPayoutReady       NotificationKind = "payout_ready"
	KindPayoutReceived    NotificationKind = "payout_received"
	KindCycleCompleted    NotificationKind = "cycle_completed"
	KindMissedPayment     NotificationKind = "missed_contribution"
	KindWalletFrozen      NotificationKind = "wallet_frozen"
	KindPenaltyDeducted   NotificationKind = "penalty_deducted"
	KindMemberJoined      NotificationKind = "member_joined"
	KindVoteResolved      NotificationKind = "vote_resolved"
	KindContributionTaken NotificationKind = "contribution_recorded"
	KindTransferReceived  NotificationKind = "transfer_received"
)

// Notifier delivers a message to a member. communityID is nil for wallet-only events.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind NotificationKind, message string, communityID *uuid.UUID) error
}
