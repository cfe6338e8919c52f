package models

import "time"

type Role string

const (
	RoleCandidate Role = "CANDIDATE"
	RoleReviewer  Role = "REVIEWER"
)

func (r Role) Valid() bool {
	return r == RoleCandidate || r == RoleReviewer
}

// DashboardPath is the landing route for a role.
func (r Role) DashboardPath() string {
	switch r {
	case RoleReviewer:
		return "/reviewer/dashboard"
	default:
		return "/candidate/dashboard"
	}
}

// from supabase auth
type User struct {
	ID            string    `bson:"id" json:"id"` // uuid
	Email         string    `bson:"email,omitempty" json:"email,omitempty"`
	Phone         string    `bson:"phone,omitempty" json:"phone,omitempty"`
	EmailVerified bool      `bson:"email_verified" json:"email_verified"`
	PhoneVerified bool      `bson:"phone_verified" json:"phone_verified"`
	Provider      string    `bson:"provider,omitempty" json:"provider,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	LastSignInAt  time.Time `bson:"last_sign_in_at" json:"last_sign_in_at"`
}
