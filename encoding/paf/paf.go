// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package paf reads alignments in the Pairwise mApping Format produced by
// minimap2. See https://github.com/lh3/miniasm/blob/master/PAF.md.
//
// Each line holds one alignment: twelve mandatory tab-separated columns
// followed by optional SAM-style "TAG:TYPE:VALUE" fields.
//
//   1  query name        7  target length
//   2  query length      8  target start (0-based)
//   3  query start       9  target end
//   4  query end        10  number of matching bases
//   5  strand (+/-)     11  alignment block length
//   6  target name      12  mapping quality (255 = missing)
package paf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// NumFields is the number of mandatory columns in a PAF line.
const NumFields = 12

// maxLineLen bounds a single PAF line. Lines carrying a cs or cg tag for a
// long alignment easily exceed bufio's default token size.
const maxLineLen = 64 << 20

// Record is one PAF alignment.
type Record struct {
	QueryName   string
	QueryLen    int64
	QueryStart  int64
	QueryEnd    int64
	Strand      byte // '+' or '-'
	TargetName  string
	TargetLen   int64
	TargetStart int64
	TargetEnd   int64
	Matches     int64
	BlockLen    int64
	MapQ        int
	// Tags holds the optional fields verbatim, e.g. "tp:A:P".
	Tags []string
}

// Tag returns the value of the optional field with the given two-letter name.
func (r *Record) Tag(name string) (string, bool) {
	for _, t := range r.Tags {
		if len(t) > 5 && t[2] == ':' && t[4] == ':' && t[:2] == name {
			return t[5:], true
		}
	}
	return "", false
}

// RecordError reports a malformed PAF line. It is recoverable: the Reader
// continues with the following line on the next call to Read.
type RecordError struct {
	Line int // 1-based
	Msg  string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("paf line %d: %s", e.Line, e.Msg)
}

// Reader reads PAF records from an input stream. Readers are not thread-safe.
type Reader struct {
	b    *bufio.Scanner
	line int
}

// NewReader creates a Reader that parses PAF lines from r. Fields are split
// on tabs only; quote characters have no special meaning.
func NewReader(r io.Reader) *Reader {
	b := bufio.NewScanner(r)
	b.Buffer(nil, maxLineLen)
	return &Reader{b: b}
}

// Line returns the 1-based line number of the record last returned by Read.
func (r *Reader) Line() int { return r.line }

// Read parses the next line into rec. It returns io.EOF at the end of the
// input, a *RecordError for a malformed line, and any other error when the
// underlying stream fails. Blank lines are skipped.
func (r *Reader) Read(rec *Record) error {
	var text string
	for {
		if !r.b.Scan() {
			if err := r.b.Err(); err != nil {
				return err
			}
			return io.EOF
		}
		r.line++
		text = strings.TrimSuffix(r.b.Text(), "\r")
		if text != "" {
			break
		}
	}
	fields := strings.Split(text, "\t")
	if len(fields) < NumFields {
		return r.errorf("expected at least %d fields, found %d", NumFields, len(fields))
	}
	p := intParser{fields: fields}
	rec.QueryName = fields[0]
	rec.QueryLen = p.int64(1, "query length")
	rec.QueryStart = p.int64(2, "query start")
	rec.QueryEnd = p.int64(3, "query end")
	rec.TargetName = fields[5]
	rec.TargetLen = p.int64(6, "target length")
	rec.TargetStart = p.int64(7, "target start")
	rec.TargetEnd = p.int64(8, "target end")
	rec.Matches = p.int64(9, "matching bases")
	rec.BlockLen = p.int64(10, "block length")
	rec.MapQ = int(p.int64(11, "mapping quality"))
	if p.err != "" {
		return r.errorf("%s", p.err)
	}
	rec.Tags = append(rec.Tags[:0], fields[NumFields:]...)

	switch {
	case fields[4] != "+" && fields[4] != "-":
		return r.errorf("invalid strand %q", fields[4])
	case rec.QueryName == "" || rec.TargetName == "":
		return r.errorf("empty sequence name")
	case rec.BlockLen <= 0:
		return r.errorf("block length must be positive, found %d", rec.BlockLen)
	case rec.Matches < 0 || rec.Matches > rec.BlockLen:
		return r.errorf("matching bases %d out of range [0, %d]", rec.Matches, rec.BlockLen)
	case rec.QueryStart < 0 || rec.QueryStart > rec.QueryEnd:
		return r.errorf("invalid query interval [%d, %d)", rec.QueryStart, rec.QueryEnd)
	case rec.TargetStart < 0 || rec.TargetStart > rec.TargetEnd:
		return r.errorf("invalid target interval [%d, %d)", rec.TargetStart, rec.TargetEnd)
	}
	rec.Strand = fields[4][0]
	return nil
}

func (r *Reader) errorf(format string, args ...interface{}) error {
	return &RecordError{Line: r.line, Msg: fmt.Sprintf(format, args...)}
}

// intParser parses integer columns, remembering the first failure.
type intParser struct {
	fields []string
	err    string
}

func (p *intParser) int64(col int, what string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(p.fields[col]), 10, 64)
	if err != nil && p.err == "" {
		p.err = fmt.Sprintf("column %d (%s): invalid integer %q", col+1, what, p.fields[col])
	}
	return v
}
