// Package comparison keeps the uploaded FASTA files and the comparisons built
// from them. A Store owns two directories:
//
//   uploads/       <name>.fa, <name>.fa.fai, .file_metadata.json (labels)
//   comparisons/   <id>.paf, <id>.json
//
// A comparison ID is derived from the contents of its two FASTA files, so
// aligning the same pair twice reuses the first result.
package comparison

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/synteny/aligner"
	"github.com/grailbio/synteny/synteny"
	"golang.org/x/sys/unix"
)

// Opts configures a Store.
type Opts struct {
	// UploadDir holds the uploaded FASTA files and their indexes.
	UploadDir string
	// ComparisonDir holds the PAF and JSON files of each comparison.
	ComparisonDir string
	// Convert is applied to every new comparison. Labels are filled in from
	// the uploads.
	Convert synteny.Opts
}

// DefaultOpts uses directories relative to the working directory.
var DefaultOpts = Opts{
	UploadDir:     "uploads",
	ComparisonDir: "comparisons",
	Convert:       synteny.DefaultOpts,
}

// idRe matches comparison IDs; anything else is rejected before it is used
// in a path.
var idRe = regexp.MustCompile(`^[0-9a-f]{8}_[0-9a-f]{8}$`)

const numLocks = 64

// Store is the state shared by all requests of the web server. It is created
// once at startup and is safe for concurrent use.
type Store struct {
	opts    Opts
	aligner aligner.Aligner

	// locks serializes work on the same comparison or upload name.
	locks [numLocks]sync.Mutex
	// labelMu guards the labels file.
	labelMu sync.Mutex

	fingerprints fingerprintCache
	registry     registry
}

// Open creates the store directories if needed, checks that they are
// writable, and loads the summaries of the existing comparisons.
func Open(ctx context.Context, opts Opts, a aligner.Aligner) (*Store, error) {
	for _, dir := range []string{opts.UploadDir, opts.ComparisonDir} {
		if dir == "" {
			return nil, errors.E(errors.Invalid, "store directory not set")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.E(err, "create", dir)
		}
		if err := unix.Access(dir, unix.W_OK); err != nil {
			return nil, errors.E(errors.NotAllowed, err, dir, "is not writable")
		}
	}
	s := &Store{opts: opts, aligner: a}
	s.fingerprints.init()
	if err := s.loadRegistry(ctx); err != nil {
		return nil, err
	}
	log.Printf("comparison store: uploads in %s, %d comparisons in %s", opts.UploadDir, s.registry.len(), opts.ComparisonDir)
	return s, nil
}

// Close releases the in-memory state of the store. Files are kept.
func (s *Store) Close() error {
	s.registry.reset()
	s.fingerprints.init()
	return nil
}

func (s *Store) lock(key string) *sync.Mutex {
	return &s.locks[farm.Hash64([]byte(key))%numLocks]
}

func (s *Store) uploadPath(name string) string {
	return filepath.Join(s.opts.UploadDir, name)
}

func (s *Store) pafPath(id string) string {
	return filepath.Join(s.opts.ComparisonDir, id+".paf")
}

func (s *Store) jsonPath(id string) string {
	return filepath.Join(s.opts.ComparisonDir, id+".json")
}

func checkID(id string) error {
	if !idRe.MatchString(id) {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid comparison id %q", id))
	}
	return nil
}

// exists reports whether path names an existing file.
func exists(ctx context.Context, path string) (bool, error) {
	_, err := file.Stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if errors.Is(errors.NotExist, err) || os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// loadRegistry reads the summary of every comparison document on disk.
func (s *Store) loadRegistry(ctx context.Context) error {
	lister := file.List(ctx, s.opts.ComparisonDir, false)
	for lister.Scan() {
		if lister.IsDir() {
			continue
		}
		path := lister.Path()
		base := filepath.Base(path)
		if !strings.HasSuffix(base, ".json") {
			continue
		}
		id := strings.TrimSuffix(base, ".json")
		if checkID(id) != nil {
			continue
		}
		s.registry.put(readSummary(ctx, id, path))
	}
	return lister.Err()
}
