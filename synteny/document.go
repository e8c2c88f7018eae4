package synteny

// Link is one aligned block between a query and a target sequence.
// Coordinates are absolute positions on the query and target axes.
type Link struct {
	QStart     int64   `json:"qStart"`
	QEnd       int64   `json:"qEnd"`
	TStart     int64   `json:"tStart"`
	TEnd       int64   `json:"tEnd"`
	Identity   float64 `json:"identity"`
	ColorTier  Tier    `json:"colorTier"`
	QueryName  string  `json:"queryName"`
	TargetName string  `json:"targetName"`
	Strand     string  `json:"strand"`
	MapQ       int     `json:"mapq"`
}

// Metadata summarizes a conversion run.
type Metadata struct {
	QueryLabel  string `json:"queryLabel"`
	TargetLabel string `json:"targetLabel"`
	// TotalLinks is len(Document.Links).
	TotalLinks int `json:"totalLinks"`
	// Skipped counts malformed PAF lines.
	Skipped int `json:"skippedRecords"`
	// Dropped counts well-formed lines naming an unknown sequence.
	Dropped int `json:"droppedRecords"`
	// Filtered counts lines below Opts.MinLength or Opts.MinIdentity.
	Filtered        int   `json:"filteredRecords"`
	QueryLength     int64 `json:"queryLength"`
	TargetLength    int64 `json:"targetLength"`
	QuerySequences  int   `json:"querySequences"`
	TargetSequences int   `json:"targetSequences"`
}

// Document is the comparison consumed by the viewer. Sequence lists keep
// index order, which is also the drawing order.
type Document struct {
	QuerySequences  []SequenceEntry `json:"querySequences"`
	TargetSequences []SequenceEntry `json:"targetSequences"`
	Links           []Link          `json:"links"`
	Tiers           []TierBound     `json:"tiers"`
	Metadata        Metadata        `json:"metadata"`
}
