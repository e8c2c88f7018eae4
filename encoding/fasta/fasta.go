// Package fasta contains code for reading sequence lengths out of FASTA files
// and for generating FASTA index (*.fai) files.
// See http://www.htslib.org/doc/faidx.html.  Briefly, FASTA files consist of a
// number of named sequences that may be interrupted by newlines.  For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Note: Sequence names are defined to be the stretch of characters excluding
// spaces immediately after '>'.  Any text appear after a space are ignored.
// For example, '>chr1 A viral sequence' becomes 'chr1'.
package fasta

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const (
	bufferInitSize = 1024 * 1024 * 300 // 300 MB
)

// Sequence is the name and the number of bases of one FASTA record.
type Sequence struct {
	Name   string
	Length int64
}

// seqName extracts the sequence name from a header line (without the '>').
func seqName(header []byte) string {
	header = bytes.TrimSpace(header)
	if i := bytes.IndexAny(header, " \t"); i >= 0 {
		header = header[:i]
	}
	return string(header)
}

// ScanLengths reads FASTA data and returns the length of every sequence, in
// the order of appearance in the file. It does not keep the bases in memory,
// so it can be used on whole genomes when no index file is available.
func ScanLengths(r io.Reader) ([]Sequence, error) {
	var (
		seqs    []Sequence
		scanner = bufio.NewScanner(r)
		cur     = -1
	)
	scanner.Buffer(nil, bufferInitSize)
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			name := seqName(line[1:])
			if name == "" {
				return nil, errors.Errorf("malformed FASTA file: empty sequence name after record %d", len(seqs))
			}
			seqs = append(seqs, Sequence{Name: name})
			cur = len(seqs) - 1
			continue
		}
		if cur < 0 {
			return nil, errors.Errorf("malformed FASTA file: sequence data before the first header")
		}
		seqs[cur].Length += int64(len(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	if len(seqs) == 0 {
		return nil, errors.Errorf("empty FASTA file")
	}
	return seqs, nil
}
