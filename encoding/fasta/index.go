package fasta

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
)

// IndexSuffix is appended to a FASTA path to form the path of its index.
const IndexSuffix = ".fai"

// indexer accumulates the index line of the sequence currently being read.
type indexer struct {
	out       *tsv.Writer
	name      string
	seqOff    int64 // byte offset of the first base of the sequence.
	bases     int64
	lineBases int
	lineWidth int // including the newline
}

func (ix *indexer) start(name string, off int64) {
	ix.name = name
	ix.seqOff = off
	ix.bases = 0
	ix.lineBases = 0
	ix.lineWidth = 0
}

// flush writes the index line for the current sequence. Sequences without
// bases are not indexed.
func (ix *indexer) flush() error {
	if ix.name == "" || ix.lineWidth == 0 {
		return nil
	}
	ix.out.WriteString(ix.name)
	ix.out.WriteInt64(ix.bases)
	ix.out.WriteInt64(ix.seqOff)
	ix.out.WriteInt64(int64(ix.lineBases))
	ix.out.WriteInt64(int64(ix.lineWidth))
	return ix.out.EndLine()
}

// GenerateIndex generates an index (*.fai) from FASTA, in the format defined
// by "samtools faidx" (http://www.htslib.org/doc/faidx.html). Each line is
// "<name>\t<length>\t<byte offset>\t<bases per line>\t<bytes per line>".
func GenerateIndex(out io.Writer, in io.Reader) error {
	var (
		ix      = indexer{out: tsv.NewWriter(out)}
		r       = bufio.NewReader(in)
		cumByte int64
	)
	for {
		fullLine, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return errors.E(err, "read FASTA")
		}
		eof := err == io.EOF
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		switch {
		case len(line) == 0:
		case line[0] == '>':
			if e := ix.flush(); e != nil {
				return e
			}
			name := seqName(line[1:])
			if name == "" {
				return errors.E(errors.Invalid, "malformed FASTA file: empty sequence name")
			}
			ix.start(name, cumByte)
		case ix.name == "":
			return errors.E(errors.Invalid, "malformed FASTA file: sequence data before the first header")
		default:
			if ix.lineWidth == 0 {
				ix.lineWidth = len(fullLine)
				ix.lineBases = len(line)
			}
			ix.bases += int64(len(line))
		}
		if eof {
			break
		}
	}
	if cumByte == 0 {
		return errors.E(errors.Invalid, "empty FASTA file")
	}
	if err := ix.flush(); err != nil {
		return err
	}
	return ix.out.Flush()
}

// GenerateIndexFile writes fastaPath+".fai" next to the FASTA file and returns
// its path.
func GenerateIndexFile(ctx context.Context, fastaPath string) (indexPath string, err error) {
	indexPath = fastaPath + IndexSuffix
	in, err := file.Open(ctx, fastaPath)
	if err != nil {
		return "", errors.E(err, "open", fastaPath)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return "", errors.E(err, "create", indexPath)
	}
	if err = GenerateIndex(out.Writer(ctx), in.Reader(ctx)); err != nil {
		_ = out.Close(ctx)
		_ = file.Remove(ctx, indexPath)
		return "", errors.E(err, "index", fastaPath)
	}
	if err = out.Close(ctx); err != nil {
		return "", errors.E(err, "close", indexPath)
	}
	return indexPath, nil
}

// EnsureIndex returns the path of the index of fastaPath, generating the index
// if it does not exist yet. An existing index is used as is.
func EnsureIndex(ctx context.Context, fastaPath string) (string, error) {
	indexPath := fastaPath + IndexSuffix
	_, err := file.Stat(ctx, indexPath)
	switch {
	case err == nil:
		return indexPath, nil
	case errors.Is(errors.NotExist, err) || os.IsNotExist(err):
		return GenerateIndexFile(ctx, fastaPath)
	default:
		return "", errors.E(err, "stat", indexPath)
	}
}

// EnsureIndexes calls EnsureIndex on each of fastaPaths in parallel and returns
// the index paths in the same order.
func EnsureIndexes(ctx context.Context, fastaPaths ...string) ([]string, error) {
	indexes := make([]string, len(fastaPaths))
	err := traverse.Each(len(fastaPaths), func(i int) (err error) {
		indexes[i], err = EnsureIndex(ctx, fastaPaths[i])
		return err
	})
	return indexes, err
}
