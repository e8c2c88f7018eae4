// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package synteny

import (
	"context"
	"io"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/synteny/encoding/paf"
)

// Opts controls a conversion.
type Opts struct {
	// MinLength drops alignments spanning fewer query bases.
	MinLength int64
	// MinIdentity drops alignments with a lower identity.
	MinIdentity float64
	// QueryLabel and TargetLabel name the two assemblies in the viewer.
	QueryLabel  string
	TargetLabel string
}

// DefaultOpts keeps every well-formed alignment.
var DefaultOpts = Opts{
	QueryLabel:  "Assembly",
	TargetLabel: "Reference",
}

// maxSuggestDistance bounds the edit distance of a "did you mean" hint.
const maxSuggestDistance = 3

// converter holds the state of one conversion run.
type converter struct {
	opts   Opts
	query  *Layout
	target *Layout
	doc    *Document
	// unknown records sequence names already reported as missing.
	unknown map[string]bool
}

// Convert reads PAF records from r and maps them onto the query and target
// layouts. Malformed lines and lines naming unknown sequences are logged,
// counted in the document metadata, and skipped. Only a failure of r itself
// aborts the conversion.
func Convert(query, target []SequenceEntry, r io.Reader, opts Opts) (*Document, error) {
	c := converter{
		opts:    opts,
		query:   NewLayout(query),
		target:  NewLayout(target),
		unknown: map[string]bool{},
		doc: &Document{
			QuerySequences:  query,
			TargetSequences: target,
			Links:           []Link{},
			Tiers:           Tiers,
		},
	}
	if c.doc.QuerySequences == nil {
		c.doc.QuerySequences = []SequenceEntry{}
	}
	if c.doc.TargetSequences == nil {
		c.doc.TargetSequences = []SequenceEntry{}
	}
	pr := paf.NewReader(r)
	var rec paf.Record
	for {
		err := pr.Read(&rec)
		if err == io.EOF {
			break
		}
		if err != nil {
			if recErr, ok := err.(*paf.RecordError); ok {
				log.Error.Printf("skipping malformed alignment: %v", recErr)
				c.doc.Metadata.Skipped++
				continue
			}
			return nil, errors.E(err, "read alignments")
		}
		c.add(&rec, pr.Line())
	}
	c.finish()
	return c.doc, nil
}

func (c *converter) add(rec *paf.Record, line int) {
	q, ok := c.query.Lookup(rec.QueryName)
	if !ok {
		c.drop(line, rec.QueryName, c.query)
		return
	}
	t, ok := c.target.Lookup(rec.TargetName)
	if !ok {
		c.drop(line, rec.TargetName, c.target)
		return
	}
	identity := Identity(rec.Matches, rec.BlockLen)
	if rec.QueryEnd-rec.QueryStart < c.opts.MinLength || identity < c.opts.MinIdentity {
		c.doc.Metadata.Filtered++
		return
	}
	c.doc.Links = append(c.doc.Links, Link{
		QStart:     q.Offset + rec.QueryStart,
		QEnd:       q.Offset + rec.QueryEnd,
		TStart:     t.Offset + rec.TargetStart,
		TEnd:       t.Offset + rec.TargetEnd,
		Identity:   identity,
		ColorTier:  Classify(identity),
		QueryName:  rec.QueryName,
		TargetName: rec.TargetName,
		Strand:     string(rec.Strand),
		MapQ:       rec.MapQ,
	})
}

// drop counts a record naming a sequence that is not in the layout. Each
// missing name is reported once.
func (c *converter) drop(line int, name string, l *Layout) {
	c.doc.Metadata.Dropped++
	if c.unknown[name] {
		return
	}
	c.unknown[name] = true
	role := "sequence"
	if seqs := l.Sequences(); len(seqs) > 0 {
		role = string(seqs[0].Role)
	}
	if s := suggest(name, l); s != "" {
		log.Error.Printf("paf line %d: %s %s not in index (did you mean %s?), dropping its alignments", line, role, name, s)
		return
	}
	log.Error.Printf("paf line %d: %s %s not in index, dropping its alignments", line, role, name)
}

// suggest returns the sequence name closest to name, or "" if none is
// close.
func suggest(name string, l *Layout) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, s := range l.Sequences() {
		if d := matchr.Levenshtein(name, s.Name); d < bestDist {
			best, bestDist = s.Name, d
		}
	}
	return best
}

func (c *converter) finish() {
	m := &c.doc.Metadata
	m.QueryLabel = c.opts.QueryLabel
	m.TargetLabel = c.opts.TargetLabel
	m.TotalLinks = len(c.doc.Links)
	m.QuerySequences = len(c.doc.QuerySequences)
	m.TargetSequences = len(c.doc.TargetSequences)
	m.QueryLength = TotalLength(c.doc.QuerySequences)
	m.TargetLength = TotalLength(c.doc.TargetSequences)
}

// ConvertFiles converts the PAF file at pafPath against the two sequence
// indexes (see ReadSequences) and writes the document to outPath.
func ConvertFiles(ctx context.Context, pafPath, queryIndexPath, targetIndexPath, outPath string, opts Opts) (*Document, error) {
	query, err := ReadSequences(ctx, queryIndexPath, Query)
	if err != nil {
		return nil, err
	}
	target, err := ReadSequences(ctx, targetIndexPath, Target)
	if err != nil {
		return nil, err
	}
	doc, err := convertPath(ctx, pafPath, query, target, opts)
	if err != nil {
		return nil, err
	}
	if err := WriteFile(ctx, outPath, doc); err != nil {
		return nil, err
	}
	m := doc.Metadata
	log.Printf("%s: %d links, %d query and %d target sequences", outPath, m.TotalLinks, m.QuerySequences, m.TargetSequences)
	if m.Skipped > 0 || m.Dropped > 0 {
		log.Printf("%s: skipped %d malformed and dropped %d unplaceable alignments", pafPath, m.Skipped, m.Dropped)
	}
	return doc, nil
}

func convertPath(ctx context.Context, pafPath string, query, target []SequenceEntry, opts Opts) (doc *Document, err error) {
	in, err := file.Open(ctx, pafPath)
	if err != nil {
		return nil, errors.E(err, "open alignments", pafPath)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	if doc, err = Convert(query, target, r, opts); err != nil {
		return nil, errors.E(err, pafPath)
	}
	return doc, nil
}
