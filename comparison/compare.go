package comparison

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/synteny/encoding/fasta"
	"github.com/grailbio/synteny/synteny"
)

// Status values of Result.
const (
	StatusExists  = "exists"
	StatusSuccess = "success"
)

// Result describes the outcome of Align.
type Result struct {
	ID         string `json:"comparison_id"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	QueryFile  string `json:"query_file,omitempty"`
	TargetFile string `json:"target_file,omitempty"`
	PAFFile    string `json:"paf_file,omitempty"`
	JSONFile   string `json:"json_file,omitempty"`
}

// Align builds the comparison of two uploaded FASTA files, named by their
// upload names. If the comparison was built before, Align returns its ID
// with StatusExists without running the aligner. Concurrent calls for the
// same pair run the aligner once.
func (s *Store) Align(ctx context.Context, queryFile, targetFile string) (Result, error) {
	if queryFile == "" || targetFile == "" {
		return Result{}, errors.E(errors.Invalid, "both query_file and target_file are required")
	}
	for _, name := range []string{queryFile, targetFile} {
		if err := checkUploadName(name); err != nil {
			return Result{}, err
		}
	}
	queryPath, targetPath := s.uploadPath(queryFile), s.uploadPath(targetFile)
	for _, f := range []struct{ what, name, path string }{
		{"Query", queryFile, queryPath},
		{"Target", targetFile, targetPath},
	} {
		ok, err := exists(ctx, f.path)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, errors.E(errors.NotExist, fmt.Sprintf("%s file not found: %s", f.what, f.name))
		}
	}
	qfp, err := s.fingerprints.get(ctx, queryPath)
	if err != nil {
		return Result{}, err
	}
	tfp, err := s.fingerprints.get(ctx, targetPath)
	if err != nil {
		return Result{}, err
	}
	id := ID(qfp, tfp)

	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	jsonPath, pafPath := s.jsonPath(id), s.pafPath(id)
	if ok, err := exists(ctx, jsonPath); err != nil {
		return Result{}, err
	} else if ok {
		return Result{ID: id, Status: StatusExists, Message: "Comparison already exists"}, nil
	}
	log.Printf("comparison %s: aligning %s against %s", id, queryFile, targetFile)
	if err := s.aligner.Align(ctx, queryPath, targetPath, pafPath); err != nil {
		return Result{}, err
	}
	indexes, err := fasta.EnsureIndexes(ctx, queryPath, targetPath)
	if err != nil {
		return Result{}, err
	}
	opts := s.opts.Convert
	opts.QueryLabel = s.label(ctx, queryFile, synteny.DefaultOpts.QueryLabel)
	opts.TargetLabel = s.label(ctx, targetFile, synteny.DefaultOpts.TargetLabel)
	doc, err := synteny.ConvertFiles(ctx, pafPath, indexes[0], indexes[1], jsonPath, opts)
	if err != nil {
		return Result{}, errors.E(err, "failed to convert PAF to JSON")
	}
	s.registry.put(newSummary(id, doc))
	return Result{
		ID:         id,
		Status:     StatusSuccess,
		QueryFile:  queryFile,
		TargetFile: targetFile,
		PAFFile:    pafPath,
		JSONFile:   jsonPath,
	}, nil
}

// List returns the summaries of all comparisons, sorted by ID.
func (s *Store) List() []Summary {
	return s.registry.list()
}

// Summary returns the summary of one comparison.
func (s *Store) Summary(id string) (Summary, error) {
	if err := checkID(id); err != nil {
		return Summary{}, err
	}
	sum, ok := s.registry.get(id)
	if !ok {
		return Summary{}, errors.E(errors.NotExist, "comparison not found:", id)
	}
	return sum, nil
}

// Data returns the JSON document of a comparison.
func (s *Store) Data(ctx context.Context, id string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	path := s.jsonPath(id)
	ok, err := exists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.E(errors.NotExist, "comparison not found:", id)
	}
	data, err := file.ReadFile(ctx, path)
	if err != nil {
		return nil, errors.E(err, "read", path)
	}
	return data, nil
}

// Delete removes the files of a comparison and returns which were deleted
// ("json", "paf").
func (s *Store) Delete(ctx context.Context, id string) ([]string, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	var deleted []string
	for _, f := range []struct{ kind, path string }{
		{"json", s.jsonPath(id)},
		{"paf", s.pafPath(id)},
	} {
		ok, err := exists(ctx, f.path)
		if err != nil {
			return deleted, err
		}
		if !ok {
			continue
		}
		if err := file.Remove(ctx, f.path); err != nil {
			return deleted, errors.E(err, "remove", f.path)
		}
		deleted = append(deleted, f.kind)
	}
	s.registry.remove(id)
	if len(deleted) == 0 {
		return nil, errors.E(errors.NotExist, "comparison not found:", id)
	}
	log.Printf("comparison %s: deleted %v", id, deleted)
	return deleted, nil
}
