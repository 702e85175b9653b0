package complaint

// Stats holds per-status counts over a set of complaints.
//
// Stats are always derived from a complete complaint set (or fetched whole
// from the service), never adjusted incrementally, so that
// Total == Pending + InProgress + Resolved + Rejected holds.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Rejected   int `json:"rejected"`
}

// Aggregate partitions complaints by status and counts each bucket.
func Aggregate(complaints []Complaint) Stats {
	var s Stats
	for _, c := range complaints {
		switch c.Status {
		case StatusPending:
			s.Pending++
		case StatusInProgress:
			s.InProgress++
		case StatusResolved:
			s.Resolved++
		case StatusRejected:
			s.Rejected++
		default:
			continue
		}
		s.Total++
	}
	return s
}

// Consistent reports whether the buckets add up to Total and none is negative.
func (s Stats) Consistent() bool {
	if s.Pending < 0 || s.InProgress < 0 || s.Resolved < 0 || s.Rejected < 0 {
		return false
	}
	return s.Total == s.Pending+s.InProgress+s.Resolved+s.Rejected
}

// Count returns the bucket for a single status.
func (s Stats) Count(status Status) int {
	switch status {
	case StatusPending:
		return s.Pending
	case StatusInProgress:
		return s.InProgress
	case StatusResolved:
		return s.Resolved
	case StatusRejected:
		return s.Rejected
	}
	return 0
}

// Filter selects complaints by status. The zero value selects all.
type Filter struct {
	Status Status
}

// FilterAll selects every complaint.
var FilterAll = Filter{}

// Matches reports whether c passes the filter.
func (f Filter) Matches(c Complaint) bool {
	return f.Status == "" || c.Status == f.Status
}

// Apply returns the complaints that pass the filter, in their original order.
func (f Filter) Apply(complaints []Complaint) []Complaint {
	out := make([]Complaint, 0, len(complaints))
	for _, c := range complaints {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// Label is the filter's display name.
func (f Filter) Label() string {
	if f.Status == "" {
		return "All"
	}
	return string(f.Status)
}

// Next cycles All → Pending → In Progress → Resolved → Rejected → All.
func (f Filter) Next() Filter {
	if f.Status == "" {
		return Filter{Status: Statuses[0]}
	}
	for i, s := range Statuses {
		if s == f.Status && i+1 < len(Statuses) {
			return Filter{Status: Statuses[i+1]}
		}
	}
	return FilterAll
}
