package reconciler

import (
	"sort"

	"github.com/yoockh/resumedesk/internal/models"
)

// State is an immutable snapshot of one live list.
// Apply never mutates its input; callers may keep old snapshots.
type State struct {
	Loading bool
	Err     error

	items    []models.Resume
	updating map[string]struct{}
}

// Items returns a copy of the list, newest first.
func (s State) Items() []models.Resume {
	out := make([]models.Resume, len(s.items))
	copy(out, s.items)
	return out
}

func (s State) Len() int { return len(s.items) }

func (s State) IsUpdating(id string) bool {
	_, ok := s.updating[id]
	return ok
}

// UpdatingIDs returns the ids currently being re-fetched, sorted.
func (s State) UpdatingIDs() []string {
	ids := make([]string, 0, len(s.updating))
	for id := range s.updating {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s State) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s State) withItems(items []models.Resume) State {
	s.items = items
	return s
}

func (s State) withUpdating(id string, on bool) State {
	if _, ok := s.updating[id]; ok == on {
		return s
	}
	next := make(map[string]struct{}, len(s.updating)+1)
	for k := range s.updating {
		next[k] = struct{}{}
	}
	if on {
		next[id] = struct{}{}
	} else {
		delete(next, id)
	}
	s.updating = next
	return s
}

func (s State) replaced(i int, r models.Resume) []models.Resume {
	items := make([]models.Resume, len(s.items))
	copy(items, s.items)
	items[i] = r
	return items
}

func (s State) without(id string) []models.Resume {
	items := make([]models.Resume, 0, len(s.items))
	for _, r := range s.items {
		if r.ID != id {
			items = append(items, r)
		}
	}
	return items
}

// Apply returns the state that follows ev.
func Apply(s State, ev Event) State {
	switch e := ev.(type) {
	case Loading:
		s.Loading = true
		s.Err = nil
		return s

	case Loaded:
		items := make([]models.Resume, len(e.Items))
		copy(items, e.Items)
		return State{items: items}

	case LoadFailed:
		return State{Err: e.Err}

	case Inserted:
		// a replayed insert moves the row to the head instead of duplicating it
		rest := s.without(e.Item.ID)
		items := make([]models.Resume, 0, len(rest)+1)
		items = append(items, e.Item)
		items = append(items, rest...)
		return s.withItems(items)

	case UpdateStarted:
		if s.indexOf(e.ID) < 0 {
			return s
		}
		return s.withUpdating(e.ID, true)

	case Updated:
		s = s.withUpdating(e.Item.ID, false)
		i := s.indexOf(e.Item.ID)
		if i < 0 {
			return s
		}
		return s.withItems(s.replaced(i, e.Item))

	case UpdateMerged:
		s = s.withUpdating(e.Row.ID, false)
		i := s.indexOf(e.Row.ID)
		if i < 0 {
			return s
		}
		return s.withItems(s.replaced(i, s.items[i].MergeRow(e.Row, e.Fields)))

	case Deleted:
		s = s.withUpdating(e.ID, false)
		if s.indexOf(e.ID) < 0 {
			return s
		}
		return s.withItems(s.without(e.ID))
	}
	return s
}
