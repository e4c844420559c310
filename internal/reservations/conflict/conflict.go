package conflict

import (
	"roomly/pkg/model"
	"time"
)

// Interval is the half-open date range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func Of(r *model.Reservation) Interval {
	return Interval{Start: r.StartDate, End: r.EndDate}
}

// Valid reports whether the interval is non-empty.
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether a and b share at least one day. A range ending on
// day D does not overlap one starting on D.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Conflicts returns the ids of confirmed reservations on roomID, other than
// excludeID, whose range overlaps candidate. Members of confirmed that are
// not confirmed or belong to another room are ignored.
func Conflicts(candidate Interval, roomID, excludeID int64, confirmed []*model.Reservation) []int64 {
	var ids []int64
	for _, r := range confirmed {
		if r == nil || r.RoomID != roomID || r.ID == excludeID {
			continue
		}
		if r.Status != model.StatusConfirmed {
			continue
		}
		if Overlaps(candidate, Of(r)) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func ConflictsWithExisting(candidate Interval, roomID, excludeID int64, confirmed []*model.Reservation) bool {
	return len(Conflicts(candidate, roomID, excludeID, confirmed)) > 0
}
