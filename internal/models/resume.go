package models

import "time"

type ResumeStatus string

const (
	StatusPending       ResumeStatus = "PENDING"
	StatusApproved      ResumeStatus = "APPROVED"
	StatusNeedsRevision ResumeStatus = "NEEDS_REVISION"
	StatusRejected      ResumeStatus = "REJECTED"
)

func (s ResumeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusNeedsRevision, StatusRejected:
		return true
	}
	return false
}

const (
	MinScore = 0
	MaxScore = 100
)

type Resume struct {
	ID          string       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID      string       `gorm:"column:user_id;type:text;index;not null" json:"user_id"`
	Name        string       `gorm:"column:name;type:text" json:"name"`
	StoragePath string       `gorm:"column:storage_path;type:text;not null" json:"storage_path"`
	Status      ResumeStatus `gorm:"column:status;type:text;not null" json:"status"`
	Notes       *string      `gorm:"column:notes;type:text" json:"notes"`
	Score       *int         `gorm:"column:score;type:integer;check:chk_resumes_score,score >= 0 AND score <= 100" json:"score"`
	ReviewedBy  *string      `gorm:"column:reviewed_by;type:text" json:"reviewed_by"`
	CreatedAt   time.Time    `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at" json:"updated_at"`

	// joined owner profile, only loaded for reviewer listings
	Owner *Profile `gorm:"foreignKey:UserID;references:ID" json:"profiles,omitempty"`
}

func (Resume) TableName() string { return "resumes" }

// MergeRow overlays the columns named in fields from a change record onto r.
// An empty fields list means the record is a complete row. Joined owner data
// on r is kept when the record carries none.
func (r Resume) MergeRow(row Resume, fields []string) Resume {
	if len(fields) == 0 {
		out := row
		if out.Owner == nil {
			out.Owner = r.Owner
		}
		return out
	}

	out := r
	for _, f := range fields {
		switch f {
		case "user_id":
			out.UserID = row.UserID
		case "name":
			out.Name = row.Name
		case "storage_path":
			out.StoragePath = row.StoragePath
		case "status":
			out.Status = row.Status
		case "notes":
			out.Notes = row.Notes
		case "score":
			out.Score = row.Score
		case "reviewed_by":
			out.ReviewedBy = row.ReviewedBy
		case "created_at":
			out.CreatedAt = row.CreatedAt
		case "updated_at":
			out.UpdatedAt = row.UpdatedAt
		case "profiles":
			if row.Owner != nil {
				out.Owner = row.Owner
			}
		}
	}
	return out
}
