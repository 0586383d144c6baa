package knowledge

// Snippet is one ranked result from the knowledge index.
type Snippet struct {
	SourceID string  `json:"sourceId"`
	Title    string  `json:"title,omitempty"`
	Content  string  `json:"content"`
	Language string  `json:"language"`
	Region   string  `json:"region,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Score    float64 `json:"score"`
}

// Query carries the retrieval request. Filters exclude, they do not down-rank.
type Query struct {
	Text       string
	Language   string
	Region     string
	Tags       []string
	MaxResults int
	MinScore   float64
}

// Lookup is the retrieval outcome handed to the response orchestrator. The
// empty-result and backend-unavailable cases degrade the same way but must
// stay distinguishable for logging and tier selection.
type Lookup struct {
	Snippets    []Snippet
	Unavailable bool
}
