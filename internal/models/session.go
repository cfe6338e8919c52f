package models

import "time"

// Session is a refresh session created by the auth exchange.
type Session struct {
	RefreshToken string    `bson:"refresh_token" json:"refresh_token"`
	Sub          string    `bson:"sub" json:"sub"`
	Identity     User      `bson:"identity" json:"identity"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt    time.Time `bson:"expires_at" json:"expires_at"`
}
