package quota

// DateLayout is the calendar date format stored in every record.
const DateLayout = "2006-01-02"

// Record is a single user's usage for one calendar date.
type Record struct {
	Count int    `json:"count"`
	Date  string `json:"date"`
}

// Document maps user identifiers to their usage record.
// The whole document is read and written as one unit.
type Document map[string]Record

// Clone returns a copy of the document that shares no state with d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}

	return out
}

// Effective returns the count that applies today for a stored record.
// A missing record or one written on another date counts as zero and is
// reported as stale.
func Effective(stored Record, found bool, today string) (count int, stale bool) {
	if !found || stored.Date != today {
		return 0, true
	}

	return stored.Count, false
}
