package community

import "savings_circle_bot/internal/domain/errs"

var (
	ErrCommunityNotFound = errs.New(errs.ErrNotFound, "community not found")
	ErrMemberNotFound    = errs.New(errs.ErrNotFound, "member not found")
	ErrMidCycleNotFound  = errs.New(errs.ErrNotFound, "mid-cycle not found")
	ErrVoteNotFound      = errs.New(errs.ErrNotFound, "vote not found")
	ErrNotAMember        = errs.New(errs.ErrNotFound, "user is not a member of this community")
	ErrNoPayoutRecord    = errs.New(errs.ErrNotFound, "member has not received a payout")

	ErrNameRequired           = errs.New(errs.ErrValidation, "community name is required")
	ErrInvalidSettings        = errs.New(errs.ErrValidation, "invalid community settings")
	ErrInvalidFrequency       = errs.New(errs.ErrValidation, "invalid contribution frequency")
	ErrInvalidPositioningMode = errs.New(errs.ErrValidation, "invalid positioning mode")
	ErrInvalidAmount          = errs.New(errs.ErrValidation, "amount must be greater than zero")
	ErrAlreadyMember          = errs.New(errs.ErrValidation, "user is already a member")
	ErrCommunityFull          = errs.New(errs.ErrValidation, "community has reached its member limit")
	ErrInvalidVoteChoice      = errs.New(errs.ErrValidation, "choice is not valid for this vote topic")
	ErrAlreadyVoted           = errs.New(errs.ErrValidation, "member has already voted")

	ErrAdminMissing        = errs.New(errs.ErrStateConflict, "community admin is not a member")
	ErrInsufficientMembers = errs.New(errs.ErrStateConflict, "not enough active members to start the first cycle")
	ErrCyclesExist         = errs.New(errs.ErrStateConflict, "cycles have already started")
	ErrNoActiveCycle       = errs.New(errs.ErrStateConflict, "no active cycle")
	ErrCycleActive         = errs.New(errs.ErrStateConflict, "a cycle is in progress")
	ErrNoActiveMidCycle    = errs.New(errs.ErrStateConflict, "no active mid-cycle")
	ErrMidCycleOpen        = errs.New(errs.ErrStateConflict, "a mid-cycle is already open")
	ErrNoMidCycleReady     = errs.New(errs.ErrStateConflict, "no mid-cycle is ready for payout")
	ErrIncompleteMidCycles = errs.New(errs.ErrStateConflict, "cycle has incomplete mid-cycles")
	ErrPayoutLocked        = errs.New(errs.ErrStateConflict, "payouts are locked for this community")
	ErrMemberWaiting       = errs.New(errs.ErrStateConflict, "member is waiting for the current mid-cycle to close")
	ErrAlreadyActive       = errs.New(errs.ErrStateConflict, "member is already active")
	ErrVoteResolved        = errs.New(errs.ErrStateConflict, "vote is already resolved")

	ErrInsufficientContribution = errs.New(errs.ErrInsufficientContribution, "contribution is below the required amount")

	ErrNoEligibleMember    = errs.New(errs.ErrIneligible, "no eligible member for payout")
	ErrIneligibleRecipient = errs.New(errs.ErrIneligible, "payout recipient is not active")
	ErrMemberInactive      = errs.New(errs.ErrIneligible, "member is inactive")
)
