package reconciler

import "github.com/yoockh/resumedesk/internal/models"

// Event is the closed set of inputs to Apply.
type Event interface{ isEvent() }

type (
	// Loading starts a (re)load of the list.
	Loading struct{}
	// Loaded replaces the list with the result of a bulk fetch.
	Loaded struct{ Items []models.Resume }
	// LoadFailed empties the list and records the error.
	LoadFailed struct{ Err error }
	// Inserted prepends a new row.
	Inserted struct{ Item models.Resume }
	// UpdateStarted marks a row as being re-fetched.
	UpdateStarted struct{ ID string }
	// Updated replaces a row with a freshly fetched one.
	Updated struct{ Item models.Resume }
	// UpdateMerged overlays the change columns onto a row after a failed re-fetch.
	// Empty Fields means Row is complete.
	UpdateMerged struct {
		Row    models.Resume
		Fields []string
	}
	// Deleted removes a row.
	Deleted struct{ ID string }
)

func (Loading) isEvent()       {}
func (Loaded) isEvent()        {}
func (LoadFailed) isEvent()    {}
func (Inserted) isEvent()      {}
func (UpdateStarted) isEvent() {}
func (Updated) isEvent()       {}
func (UpdateMerged) isEvent()  {}
func (Deleted) isEvent()       {}
