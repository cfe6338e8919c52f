package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/yoockh/resumedesk/internal/models"
)

type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Change is one row-level event on the resumes table.
// Insert and update carry Record; delete carries ID and UserID only.
// Fields names the record columns that are set; empty means the whole row.
type Change struct {
	Type   ChangeType     `json:"type"`
	Record *models.Resume `json:"record,omitempty"`
	Fields []string       `json:"fields,omitempty"`
	ID     string         `json:"id,omitempty"`
	UserID string         `json:"user_id,omitempty"`
}

func Inserted(r models.Resume) Change { return Change{Type: ChangeInsert, Record: &r, ID: r.ID, UserID: r.UserID} }
func Updated(r models.Resume) Change  { return Change{Type: ChangeUpdate, Record: &r, ID: r.ID, UserID: r.UserID} }

// UpdatedFields is an update that carries only the named columns of r.
func UpdatedFields(r models.Resume, fields ...string) Change {
	c := Updated(r)
	c.Fields = fields
	return c
}

func Deleted(id, userID string) Change {
	return Change{Type: ChangeDelete, ID: id, UserID: userID}
}

// RecordID returns the id of the affected row whatever the change type.
func (c Change) RecordID() string {
	if c.Record != nil && c.Record.ID != "" {
		return c.Record.ID
	}
	return c.ID
}

// OwnerID returns the owner of the affected row.
func (c Change) OwnerID() string {
	if c.Record != nil && c.Record.UserID != "" {
		return c.Record.UserID
	}
	return c.UserID
}

func (c Change) Validate() error {
	switch c.Type {
	case ChangeInsert, ChangeUpdate:
		if c.Record == nil || c.Record.ID == "" {
			return fmt.Errorf("%s change without record", c.Type)
		}
	case ChangeDelete:
		if c.ID == "" {
			return fmt.Errorf("delete change without id")
		}
	default:
		return fmt.Errorf("unknown change type %q", c.Type)
	}
	return nil
}

// Decode parses and validates a change. When the sender did not list the
// columns of an update, they are taken from the keys present in the record.
func Decode(b []byte) (Change, error) {
	var wire struct {
		Change
		Record json.RawMessage `json:"record,omitempty"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return Change{}, err
	}
	c := wire.Change
	if len(wire.Record) > 0 && string(wire.Record) != "null" {
		var r models.Resume
		if err := json.Unmarshal(wire.Record, &r); err != nil {
			return Change{}, fmt.Errorf("decode record: %w", err)
		}
		c.Record = &r
		if c.Type == ChangeUpdate && len(c.Fields) == 0 {
			fields, err := recordFields(wire.Record)
			if err != nil {
				return Change{}, err
			}
			c.Fields = fields
		}
	}
	if err := c.Validate(); err != nil {
		return Change{}, err
	}
	return c, nil
}

// recordColumns are the json keys of a full resumes row.
var recordColumns = []string{"id", "user_id", "name", "storage_path", "status", "notes", "score", "reviewed_by", "created_at", "updated_at"}

// recordFields returns the keys present in a raw record, or nil when all row columns are there.
func recordFields(raw json.RawMessage) ([]string, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	complete := true
	for _, col := range recordColumns {
		if _, ok := keys[col]; !ok {
			complete = false
			break
		}
	}
	if complete {
		return nil, nil
	}
	fields := make([]string, 0, len(keys))
	for k := range keys {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields, nil
}

// Scope restricts a subscription or listing to one owner. The zero value means all rows.
type Scope struct {
	OwnerID string
}

func (s Scope) All() bool { return s.OwnerID == "" }

// Matches reports whether a change belongs to the scope.
func (s Scope) Matches(c Change) bool {
	return s.All() || c.OwnerID() == s.OwnerID
}

type Subscription interface {
	// Events is closed once the subscription is closed.
	Events() <-chan Change
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, scope Scope) (Subscription, error)
}

type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Discard drops every change. Used when rows reach the feed another way.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Change) error { return nil }
