package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector"
	Filter       Filter
	Vector       []float32
	K            int
	EFRuntime    int // HNSW EF_RUNTIME override, 0 keeps the index default
	ReturnFields []string
}

// TagClause matches when the field holds any of Values.
type TagClause struct {
	Field  string
	Values []string
}

// RangeClause matches numeric fields within inclusive bounds. Nil bound is open.
type RangeClause struct {
	Field string
	Min   *float64
	Max   *float64
}

// Filter is a conjunction of tag and range clauses pushed down to FT.SEARCH.
type Filter struct {
	Tags   []TagClause
	Ranges []RangeClause
}

// IsEmpty reports whether the filter has no clauses.
func (f Filter) IsEmpty() bool {
	return len(f.Tags) == 0 && len(f.Ranges) == 0
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
