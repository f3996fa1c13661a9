// Package proto defines the message types exchanged over the JSON-over-TCP
// RPC layer (see pkg/rpc) between the problem index service and its callers.
//
// The types are hand-written and carry JSON struct tags; windows travel as
// plain strings so callers need not import the recency package.
package proto

// Method names registered by the problem service.
const (
	MethodLookup          = "ProblemService.Lookup"
	MethodSearch          = "ProblemService.Search"
	MethodStatus          = "ProblemService.Status"
	MethodCompanies       = "ProblemService.Companies"
	MethodCompanyProblems = "ProblemService.CompanyProblems"
	MethodRebuild         = "ProblemService.Rebuild"
)

// Error codes carried in rpc.Error.Code by the problem service.
const (
	CodeNotFound    = "not_found"
	CodeNotReady    = "not_ready"
	CodeInvalid     = "invalid_argument"
	CodeRateLimited = "rate_limited"
	CodeUnavailable = "unavailable"
)

// ---------- Lookup ----------

// Lookup modes. ModeResolve accepts either a key or a title.
const (
	ModeResolve  = "resolve"
	ModeIdentity = "identity"
	ModeTitle    = "title"
)

type LookupRequest struct {
	Input  string `json:"input"`
	Mode   string `json:"mode,omitempty"`
	Window string `json:"window,omitempty"`
}

type CompanyStat struct {
	Company      string   `json:"company"`
	MaxFrequency int      `json:"max_frequency"`
	WindowsSeen  []string `json:"windows_seen,omitempty"`
	LastSeen     string   `json:"last_seen"`
}

type Problem struct {
	Title      string        `json:"title"`
	Key        string        `json:"key"`
	Difficulty string        `json:"difficulty,omitempty"`
	Link       string        `json:"link,omitempty"`
	Window     string        `json:"window,omitempty"`
	Companies  []CompanyStat `json:"companies"`
}

type LookupResponse struct {
	Problem Problem `json:"problem"`
	Version uint64  `json:"version"`
}

// ---------- Search ----------

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type SearchResult struct {
	Title        string `json:"title"`
	Key          string `json:"key"`
	CompanyCount int    `json:"company_count"`
}

type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Version uint64         `json:"version"`
}

// ---------- Companies ----------

type CompaniesRequest struct{}

type CompanySummary struct {
	Name         string `json:"name"`
	ProblemCount int    `json:"problem_count"`
}

type CompaniesResponse struct {
	Companies []CompanySummary `json:"companies"`
}

type CompanyProblemsRequest struct {
	Company string `json:"company"`
	Window  string `json:"window,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type CompanyProblem struct {
	Title        string `json:"title"`
	Key          string `json:"key"`
	Difficulty   string `json:"difficulty,omitempty"`
	MaxFrequency int    `json:"max_frequency"`
	LastSeen     string `json:"last_seen"`
}

type CompanyProblemsResponse struct {
	Company  string           `json:"company"`
	Window   string           `json:"window,omitempty"`
	Problems []CompanyProblem `json:"problems"`
}

// ---------- Status / Rebuild ----------

type StatusRequest struct{}

type StatusResponse struct {
	Ready          bool   `json:"ready"`
	Version        uint64 `json:"version"`
	LastRebuiltAt  int64  `json:"last_rebuilt_at,omitempty"`
	TotalProblems  int    `json:"total_problems"`
	TotalCompanies int    `json:"total_companies"`
	Discarded      int    `json:"discarded_records"`
}

type RebuildRequest struct {
	Trigger string `json:"trigger,omitempty"`
}

type RebuildResponse struct {
	Version    uint64 `json:"version"`
	Published  bool   `json:"published"`
	Coalesced  bool   `json:"coalesced"`
	Problems   int    `json:"problems"`
	Companies  int    `json:"companies"`
	Discarded  int    `json:"discarded_records"`
	DurationMs int64  `json:"duration_ms"`
}
