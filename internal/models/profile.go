package models

import "time"

// Profile is created once during onboarding. Role never changes afterwards.
type Profile struct {
	ID        string    `gorm:"column:id;type:text;primaryKey" json:"id"`
	FullName  *string   `gorm:"column:full_name;type:text" json:"full_name"`
	Role      Role      `gorm:"column:role;type:text;not null" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Profile) TableName() string { return "profiles" }

func (p *Profile) DisplayName() string {
	if p == nil || p.FullName == nil {
		return ""
	}
	return *p.FullName
}
