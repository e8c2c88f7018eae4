// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package aligner runs the external whole-genome aligner that produces the
// PAF files converted by package synteny.
package aligner

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Aligner aligns a query FASTA against a target FASTA and writes the
// alignments in PAF format to pafPath. The PAF file is complete only when
// Align returns nil.
type Aligner interface {
	Align(ctx context.Context, queryPath, targetPath, pafPath string) error
}

// Minimap2 runs minimap2 as a subprocess.
type Minimap2 struct {
	// Path is the minimap2 executable, looked up in $PATH if it has no
	// slash.
	Path string
	// Preset is passed as "-x", e.g. "asm5" for assemblies of the same
	// species.
	Preset string
	// Args are extra arguments placed before the input files.
	Args []string
	// Timeout bounds one alignment. Zero means no limit.
	Timeout time.Duration
}

// DefaultMinimap2 matches the command line used to build comparisons:
// "minimap2 -x asm5 -c target.fa query.fa".
var DefaultMinimap2 = Minimap2{
	Path:    "minimap2",
	Preset:  "asm5",
	Args:    []string{"-c"},
	Timeout: 30 * time.Minute,
}

// maxStderr bounds the amount of minimap2 stderr kept in errors.
const maxStderr = 8 << 10

func (m Minimap2) args(queryPath, targetPath string) []string {
	var args []string
	if m.Preset != "" {
		args = append(args, "-x", m.Preset)
	}
	args = append(args, m.Args...)
	return append(args, targetPath, queryPath)
}

// Align implements Aligner. The error names the failure kind: Unavailable
// when the executable cannot be found, Timeout when the time limit expires,
// and Other when minimap2 exits with an error, whose stderr is included.
func (m Minimap2) Align(ctx context.Context, queryPath, targetPath, pafPath string) (err error) {
	bin := m.Path
	if bin == "" {
		bin = DefaultMinimap2.Path
	}
	if _, err := exec.LookPath(bin); err != nil {
		return errors.E(errors.Unavailable, bin+" not found; please install minimap2", err)
	}
	out, err := file.Create(ctx, pafPath)
	if err != nil {
		return errors.E(err, "create", pafPath)
	}
	var stderr bytes.Buffer
	args := m.args(queryPath, targetPath)
	runCtx := ctx
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(runCtx, bin, args...)
	cmd.Stdout = out.Writer(ctx)
	cmd.Stderr = &limitedBuffer{buf: &stderr, limit: maxStderr}
	log.Debug.Printf("running %s %s", bin, strings.Join(args, " "))
	start := time.Now()
	runErr := cmd.Run()
	closeErr := out.Close(ctx)
	switch {
	case runErr != nil && runCtx.Err() == context.DeadlineExceeded:
		err = errors.E(errors.Timeout, "minimap2 timed out after", m.Timeout.String())
	case runErr != nil:
		err = errors.E(runErr, "minimap2 alignment failed:", strings.TrimSpace(stderr.String()))
	case closeErr != nil:
		err = errors.E(closeErr, "close", pafPath)
	}
	if err != nil {
		if e := file.Remove(ctx, pafPath); e != nil {
			log.Error.Printf("remove %s: %v", pafPath, e)
		}
		return err
	}
	log.Printf("aligned %s against %s in %v", queryPath, targetPath, time.Since(start))
	return nil
}

// limitedBuffer keeps the first limit bytes written to it and discards the
// rest.
type limitedBuffer struct {
	buf   *bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if n := b.limit - b.buf.Len(); n > 0 {
		if len(p) > n {
			b.buf.Write(p[:n])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

// Func adapts a function to the Aligner interface.
type Func func(ctx context.Context, queryPath, targetPath, pafPath string) error

// Align implements Aligner.
func (f Func) Align(ctx context.Context, queryPath, targetPath, pafPath string) error {
	return f(ctx, queryPath, targetPath, pafPath)
}
