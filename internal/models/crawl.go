// Package models defines the graph's node and edge records: ROOT, URL, and
// Lead, per spec.md §3.
package models

import "time"

// JobStatus is the state-machine value a URL node carries.
type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusInProgress JobStatus = "IN-PROGRESS"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
	StatusCancelled  JobStatus = "CANCELLED"
)

// Terminal reports whether no further transition is permitted from status.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Root is the single per-crawl anchor node. Unique by CrawlID.
type Root struct {
	CrawlID        string    `badgerhold:"key" json:"crawl_id"`
	Name           string    `json:"name"`
	HTTPType       string    `json:"http_type"`
	IP             string    `json:"ip"`
	Domain         string    `json:"domain"`
	RequestedDepth int       `json:"requested_depth"`
	CurrentDepth   int       `json:"current_depth"`
	RequestTime    time.Time `json:"request_time"`
	CreatedAt      time.Time `json:"created_at"`
}

// URL is one discovered page within a crawl. Key IS the (CrawlID, Name,
// HTTPType) triple pre-joined, which doubles as spec.md §4.5's composite
// uniqueness constraint: a get-or-create keyed on Key can never produce a
// duplicate, and it is also the addressing key spec.md §4.5 calls
// (name, http_type, current_depth, crawl_id) for update_job_status and
// reset_to_pending (current_depth never changes after creation, so it does
// not need to participate in the key).
type URL struct {
	Key            string     `badgerhold:"key" json:"key"`
	CrawlID        string     `badgerhold:"index" json:"crawl_id"`
	Name           string     `json:"name"`
	HTTPType       string     `json:"http_type"`
	IP             string     `json:"ip"`
	Domain         string     `json:"domain"`
	RequestedDepth int        `json:"requested_depth"`
	CurrentDepth   int        `json:"current_depth"`
	JobStatus      JobStatus  `badgerhold:"index" json:"job_status"`
	Attempts       int        `json:"attempts"`
	RequestTime    time.Time  `json:"request_time"`
	ClaimedAt      *time.Time `badgerhold:"index" json:"claimed_at,omitempty"`
}

// URLKeyFor builds the (crawl_id, name, http_type) composite key a URL node
// is stored and addressed under.
func URLKeyFor(crawlID, httpType, name string) string {
	return crawlID + "|" + httpType + name
}

// NodeID is the graph-facing identifier for a ROOT or URL node: scheme and
// name joined, unique within a single crawl (it is exactly spec.md's
// (name, http_type) half of the URL uniqueness pair; CrawlID is the other
// half and is carried alongside it wherever a NodeID is stored).
func NodeID(httpType, name string) string {
	return httpType + name
}

// Lead is a directed edge from a parent ROOT or URL to a child URL, scoped
// to one crawl. ParentID/ChildID are NodeIDs, not store keys — that's what
// GetGraphData needs to hand back to callers without a second lookup.
type Lead struct {
	Key      string `badgerhold:"key" json:"key"`
	CrawlID  string `badgerhold:"index" json:"crawl_id"`
	ParentID string `json:"parent_id"`
	ChildID  string `json:"child_id"`
}

// LeadKeyFor builds the primary key a Lead edge is stored under. Scoped by
// crawlID so the same host reachable from two different crawls never
// collides.
func LeadKeyFor(crawlID, parentID, childID string) string {
	return crawlID + "|" + parentID + "->" + childID
}
