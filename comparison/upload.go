package comparison

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/synteny/encoding/fasta"
)

// labelsFile maps upload names to display labels.
const labelsFile = ".file_metadata.json"

// allowedExts are the accepted FASTA file extensions, compared lowercased.
var allowedExts = map[string]bool{".fasta": true, ".fa": true, ".fna": true}

// Upload describes an uploaded FASTA file.
type Upload struct {
	Filename string `json:"filename"`
	Hash     string `json:"hash"`
	Size     int64  `json:"size"`
	Path     string `json:"path,omitempty"`
}

type labelEntry struct {
	Label string `json:"label"`
}

// AllowedFile reports whether name is a plain file name with a FASTA
// extension.
func AllowedFile(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return false
	}
	return allowedExts[strings.ToLower(filepath.Ext(name))]
}

func checkUploadName(name string) error {
	if name == "" {
		return errors.E(errors.Invalid, "no file selected")
	}
	if !AllowedFile(name) {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid file %q: only FASTA files (.fasta, .fa, .fna) are allowed", name))
	}
	return nil
}

// SaveUpload stores the FASTA data read from r under name, replacing any
// previous upload of that name, and indexes it. A non-empty label is
// recorded as the name shown for the file in comparisons.
func (s *Store) SaveUpload(ctx context.Context, name, label string, r io.Reader) (Upload, error) {
	if err := checkUploadName(name); err != nil {
		return Upload{}, err
	}
	mu := s.lock("upload:" + name)
	mu.Lock()
	defer mu.Unlock()

	path := s.uploadPath(name)
	out, err := file.Create(ctx, path)
	if err != nil {
		return Upload{}, errors.E(err, "create", path)
	}
	size, err := io.Copy(out.Writer(ctx), r)
	if e := out.Close(ctx); e != nil && err == nil {
		err = e
	}
	s.fingerprints.forget(path)
	if err != nil {
		return Upload{}, errors.E(err, "save upload", name)
	}
	if _, err := fasta.GenerateIndexFile(ctx, path); err != nil {
		_ = file.Remove(ctx, path)
		return Upload{}, errors.E(errors.Invalid, err, "failed to index FASTA file", name)
	}
	if label != "" {
		if err := s.setLabel(ctx, name, label); err != nil {
			return Upload{}, err
		}
	}
	fp, err := s.fingerprints.get(ctx, path)
	if err != nil {
		return Upload{}, err
	}
	log.Printf("uploaded %s (%d bytes, %s)", name, size, fp)
	return Upload{Filename: name, Hash: fp, Size: size, Path: path}, nil
}

// Files lists the uploaded FASTA files, sorted by name.
func (s *Store) Files(ctx context.Context) ([]Upload, error) {
	var files []Upload
	lister := file.List(ctx, s.opts.UploadDir, false)
	for lister.Scan() {
		if lister.IsDir() {
			continue
		}
		name := filepath.Base(lister.Path())
		if !AllowedFile(name) {
			continue
		}
		fp, err := s.fingerprints.get(ctx, lister.Path())
		if err != nil {
			return nil, err
		}
		files = append(files, Upload{Filename: name, Hash: fp, Size: lister.Info().Size()})
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(err, "list", s.opts.UploadDir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	if files == nil {
		files = []Upload{}
	}
	return files, nil
}

func (s *Store) readLabels(ctx context.Context) (map[string]labelEntry, error) {
	labels := map[string]labelEntry{}
	path := s.uploadPath(labelsFile)
	ok, err := exists(ctx, path)
	if err != nil || !ok {
		return labels, err
	}
	data, err := file.ReadFile(ctx, path)
	if err != nil {
		return nil, errors.E(err, "read", path)
	}
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, errors.E(errors.Invalid, err, "decode", path)
	}
	return labels, nil
}

func (s *Store) setLabel(ctx context.Context, name, label string) error {
	s.labelMu.Lock()
	defer s.labelMu.Unlock()
	labels, err := s.readLabels(ctx)
	if err != nil {
		// A corrupt labels file is replaced rather than blocking uploads.
		log.Error.Printf("labels: %v", err)
		labels = map[string]labelEntry{}
	}
	labels[name] = labelEntry{Label: label}
	data, err := json.MarshalIndent(labels, "", "  ")
	if err != nil {
		return err
	}
	path := s.uploadPath(labelsFile)
	if err := file.WriteFile(ctx, path, data); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

// label returns the display name of an upload: its recorded label, the file
// name if it was recorded without one, else def.
func (s *Store) label(ctx context.Context, name, def string) string {
	s.labelMu.Lock()
	labels, err := s.readLabels(ctx)
	s.labelMu.Unlock()
	if err != nil {
		log.Error.Printf("labels: %v", err)
		return def
	}
	e, ok := labels[name]
	if !ok {
		return def
	}
	if e.Label == "" {
		return name
	}
	return e.Label
}
