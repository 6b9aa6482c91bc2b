package community

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is how often a payout round closes.
type Frequency string

const (
	FrequencyHourly  Frequency = "Hourly"
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
)

// Next returns the payout time one period after from.
func (f Frequency) Next(from time.Time) time.Time {
	switch f {
	case FrequencyHourly:
		return from.Add(time.Hour)
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 1)
	}
}

// Settings are the admin-chosen rules of a community.
type Settings struct {
	ContributionFrequency Frequency       `json:"contributionFrequency" toml:"contribution_frequency"`
	MaxMembers            int             `json:"maxMembers" toml:"max_members"`
	BackupFundPercentage  decimal.Decimal `json:"backupFundPercentage" toml:"backup_fund_percentage"`
	MinContribution       decimal.Decimal `json:"minContribution" toml:"min_contribution"`
	PenaltyAmount         decimal.Decimal `json:"penalty" toml:"penalty"`
	NumMissContribution   int             `json:"numMissContribution" toml:"num_miss_contribution"`
	FirstCycleMin         int             `json:"firstCycleMin" toml:"first_cycle_min"`
}

// Validate checks the settings are usable.
func (s Settings) Validate() error {
	switch s.ContributionFrequency {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return ErrInvalidFrequency
	}
	if s.MaxMembers < 1 {
		return ErrInvalidSettings
	}
	if s.FirstCycleMin < 1 || s.FirstCycleMin > s.MaxMembers {
		return ErrInvalidSettings
	}
	if s.NumMissContribution < 1 {
		return ErrInvalidSettings
	}
	if !s.MinContribution.IsPositive() {
		return ErrInvalidAmount
	}
	if s.PenaltyAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if s.BackupFundPercentage.IsNegative() || s.BackupFundPercentage.GreaterThanOrEqual(hundred) {
		return ErrInvalidSettings
	}
	return nil
}

// MinNetContribution is the minimum contribution less its backup-fund share.
func (s Settings) MinNetContribution() decimal.Decimal {
	return s.MinContribution.Sub(s.MinContribution.Mul(s.BackupFundPercentage).Div(hundred))
}
