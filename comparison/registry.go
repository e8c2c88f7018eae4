package comparison

import (
	"context"
	"strings"
	"sync"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/log"
	"github.com/grailbio/synteny/synteny"
)

// Summary describes one comparison in the listing.
type Summary struct {
	ID              string `json:"comparison_id"`
	QueryName       string `json:"query_name"`
	TargetName      string `json:"target_name"`
	TotalBlocks     int    `json:"total_blocks"`
	QuerySequences  int    `json:"query_sequences"`
	TargetSequences int    `json:"target_sequences"`
}

const unknownName = "Unknown"

// Compare implements llrb.Comparable; summaries are ordered by ID.
func (s *Summary) Compare(c llrb.Comparable) int {
	return strings.Compare(s.ID, c.(*Summary).ID)
}

// readSummary loads the summary of the document at path. An unreadable
// document is still listed, with unknown names.
func readSummary(ctx context.Context, id, path string) *Summary {
	doc, err := synteny.ReadFile(ctx, path)
	if err != nil {
		log.Error.Printf("comparison %s: %v", id, err)
		return &Summary{ID: id, QueryName: unknownName, TargetName: unknownName}
	}
	return newSummary(id, doc)
}

func newSummary(id string, doc *synteny.Document) *Summary {
	m := doc.Metadata
	s := &Summary{
		ID:              id,
		QueryName:       m.QueryLabel,
		TargetName:      m.TargetLabel,
		TotalBlocks:     len(doc.Links),
		QuerySequences:  len(doc.QuerySequences),
		TargetSequences: len(doc.TargetSequences),
	}
	if s.QueryName == "" {
		s.QueryName = unknownName
	}
	if s.TargetName == "" {
		s.TargetName = unknownName
	}
	return s
}

// registry is the in-memory index of the comparisons on disk.
type registry struct {
	mu   sync.Mutex
	tree llrb.Tree
}

func (r *registry) put(s *Summary) {
	r.mu.Lock()
	r.tree.Insert(s)
	r.mu.Unlock()
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	r.tree.Delete(&Summary{ID: id})
	r.mu.Unlock()
}

func (r *registry) get(id string) (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.tree.Get(&Summary{ID: id})
	if c == nil {
		return Summary{}, false
	}
	return *c.(*Summary), true
}

// list returns copies of all summaries, sorted by ID.
func (r *registry) list() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Summary, 0, r.tree.Len())
	r.tree.Do(func(c llrb.Comparable) bool {
		out = append(out, *c.(*Summary))
		return false
	})
	return out
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tree.Len()
}

func (r *registry) reset() {
	r.mu.Lock()
	r.tree = llrb.Tree{}
	r.mu.Unlock()
}
