package users

import "time"

// Status enum. Users are never hard-deleted; deactivation flips this flag
// and every read filters on it explicitly.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// User identity + quota state. AuthID is the external identity-provider key.
type User struct {
	ID                 int64     `json:"id"`
	AuthID             string    `json:"authId"`
	Email              string    `json:"email"`
	FirstName          string    `json:"firstName,omitempty"`
	LastName           string    `json:"lastName,omitempty"`
	LifetimeInspection int64     `json:"lifetimeInspectionCount"`
	MonthlyInspection  int       `json:"monthlyInspectionCount"`
	LastQuotaReset     time.Time `json:"lastQuotaReset"`
	Status             Status    `json:"status"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// EffectiveMonthlyCount applies the lazy calendar-month reset: a reset
// timestamp from a prior month means the stored counter no longer counts.
func (u *User) EffectiveMonthlyCount(now time.Time) int {
	if sameMonth(u.LastQuotaReset, now) {
		return u.MonthlyInspection
	}
	return 0
}

func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.UTC().Date()
	by, bm, _ := b.UTC().Date()
	return ay == by && am == bm
}
