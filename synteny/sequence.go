package synteny

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/synteny/encoding/fasta"
)

// Role says which side of a comparison a sequence belongs to.
type Role string

const (
	// Query sequences come from the assembly being compared, e.g. contigs.
	Query Role = "query"
	// Target sequences come from the reference, e.g. chromosomes.
	Target Role = "target"
)

// SequenceEntry is a sequence placed on the layout axis. Offset is the sum of
// the lengths of the sequences preceding it in its index.
type SequenceEntry struct {
	Name   string `json:"name"`
	Length int64  `json:"length"`
	Offset int64  `json:"offset"`
	Role   Role   `json:"role,omitempty"`
}

// End returns the first axis position after the sequence.
func (e SequenceEntry) End() int64 { return e.Offset + e.Length }

// IndexError reports a malformed sequence index. It is fatal for a
// conversion.
type IndexError struct {
	Path string // may be empty when reading from a stream
	Line int    // 1-based; 0 if not tied to a line
	Msg  string
}

func (e *IndexError) Error() string {
	path := e.Path
	if path == "" {
		path = "index"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", path, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", path, e.Msg)
}

// LoadIndex reads a sequence-length index, one "name\tlength[\t...]" line per
// sequence, and returns the sequences in file order with their offsets
// assigned. Extra columns, such as the byte offsets of a .fai file, are
// ignored. A line starting with '#' that has no tab is a comment; a line with
// a tab is always a sequence, whatever its name. Path is used only in error
// messages.
func LoadIndex(r io.Reader, path string, role Role) ([]SequenceEntry, error) {
	var (
		b    = bufio.NewScanner(r)
		line int
		seqs []SequenceEntry
		seen = map[string]int{}
	)
	for b.Scan() {
		line++
		text := strings.TrimSuffix(b.Text(), "\r")
		if text == "" || (text[0] == '#' && !strings.Contains(text, "\t")) {
			continue
		}
		row := strings.Split(text, "\t")
		if len(row) < 2 {
			return nil, &IndexError{Path: path, Line: line, Msg: fmt.Sprintf("expected name and length, found %d field(s)", len(row))}
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			return nil, &IndexError{Path: path, Line: line, Msg: "empty sequence name"}
		}
		length, err := strconv.ParseInt(strings.TrimSpace(row[1]), 10, 64)
		if err != nil {
			return nil, &IndexError{Path: path, Line: line, Msg: fmt.Sprintf("invalid length %q for %s", row[1], name)}
		}
		if length <= 0 {
			return nil, &IndexError{Path: path, Line: line, Msg: fmt.Sprintf("length of %s must be positive, found %d", name, length)}
		}
		if prev, ok := seen[name]; ok {
			return nil, &IndexError{Path: path, Line: line, Msg: fmt.Sprintf("duplicate sequence %s, first seen on line %d", name, prev)}
		}
		seen[name] = line
		seqs = append(seqs, SequenceEntry{Name: name, Length: length, Role: role})
	}
	if err := b.Err(); err != nil {
		return nil, errors.E(err, "read index", path)
	}
	AssignOffsets(seqs)
	return seqs, nil
}

// ReadSequences loads the sequences of one side of a comparison from path.
// Path is normally a FASTA index. If path ends in ".fai" but is missing or
// empty, the lengths are computed from the FASTA file next to it instead.
// Compressed files are decompressed based on their extension.
func ReadSequences(ctx context.Context, path string, role Role) (seqs []SequenceEntry, err error) {
	if strings.HasSuffix(path, fasta.IndexSuffix) {
		if info, e := file.Stat(ctx, path); e != nil || info.Size() == 0 {
			fastaPath := strings.TrimSuffix(path, fasta.IndexSuffix)
			log.Printf("%s: index missing or empty, reading lengths from %s", path, fastaPath)
			return readFASTALengths(ctx, fastaPath, role)
		}
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open index", path)
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
	return LoadIndex(r, path, role)
}

func readFASTALengths(ctx context.Context, path string, role Role) (seqs []SequenceEntry, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open FASTA", path)
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
	raw, err := fasta.ScanLengths(r)
	if err != nil {
		return nil, &IndexError{Path: path, Msg: err.Error()}
	}
	seen := map[string]bool{}
	for _, s := range raw {
		if s.Length == 0 {
			log.Error.Printf("%s: sequence %s has no bases, leaving it out", path, s.Name)
			continue
		}
		if seen[s.Name] {
			return nil, &IndexError{Path: path, Msg: fmt.Sprintf("duplicate sequence %s", s.Name)}
		}
		seen[s.Name] = true
		seqs = append(seqs, SequenceEntry{Name: s.Name, Length: s.Length, Role: role})
	}
	AssignOffsets(seqs)
	return seqs, nil
}
