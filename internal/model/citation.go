package model

// Source types a citation can carry. A citation is always derived from a
// retrieved chunk, a web search result, or a deterministic calculation.
const (
	SourceTypeLocal    = "local"
	SourceTypeWeb      = "web"
	SourceTypeComputed = "computed"
)

type Citation struct {
	SourceID   string  `json:"source_id"`
	Excerpt    string  `json:"excerpt"`
	Score      float64 `json:"score"`
	SourceType string  `json:"source_type"`
}
