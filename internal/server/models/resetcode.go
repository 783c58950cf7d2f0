package models

import "time"

// ResetCode is an admin-issued single-use code authorizing a password
// change or an account creation.
type ResetCode struct {
	ID          string
	Code        string
	TargetEmail *string // nil: any requester may redeem
	IssuedBy    string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Used        bool
	UsedAt      *time.Time
	UsedBy      *string
	CompanyID   *string
	SectorID    *string
	UserLevel   string
}

// Expired reports whether the code has reached its expiry at now. A code is
// redeemable only while now < ExpiresAt.
func (c *ResetCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Valid reports whether the code can still be redeemed at now.
func (c *ResetCode) Valid(now time.Time) bool {
	return !c.Used && !c.Expired(now)
}
