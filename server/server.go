// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package server implements the HTTP API of the synteny viewer: FASTA
// uploads, alignment requests, and access to the resulting comparison
// documents. It also serves the static viewer files.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/synteny/comparison"
	"github.com/klauspost/compress/gzip"
)

// maxMemory is the part of a multipart upload kept in memory; the rest is
// spooled to temporary files.
const maxMemory = 32 << 20

// Server serves the API for one comparison store.
type Server struct {
	opts    Opts
	store   *comparison.Store
	handler http.Handler
}

// New returns a server for the given store.
func New(store *comparison.Store, opts Opts) *Server {
	s := &Server{opts: opts, store: store}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/files", s.handleFiles)
	mux.HandleFunc("/api/align", s.handleAlign)
	mux.HandleFunc("/api/comparisons", s.handleComparisons)
	mux.HandleFunc("/api/comparison/", s.handleComparison)
	if opts.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(opts.StaticDir)))
	}
	s.handler = logRequests(allowCORS(mux))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on opts.Addr until ctx is done, then shuts down,
// waiting for running requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.opts.Addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Printf("serving synteny viewer at %s (uploads=%s, comparisons=%s)", s.opts.Addr, s.opts.UploadDir, s.opts.ComparisonDir)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: fmt.Sprintf("upload exceeds %d bytes", s.opts.MaxUploadBytes),
			})
			return
		}
		writeError(w, errors.E(errors.Invalid, "No file provided", err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Error.Printf("upload: remove temporary files: %v", err)
		}
	}()
	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errors.E(errors.Invalid, "No file provided", err))
		return
	}
	defer f.Close()
	up, err := s.store.SaveUpload(r.Context(), filepath.Base(header.Filename), strings.TrimSpace(r.FormValue("label")), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	files, err := s.store.Files(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Files []comparison.Upload `json:"files"`
	}{files})
}

type alignRequest struct {
	QueryFile  string `json:"query_file"`
	TargetFile string `json:"target_file"`
}

func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req alignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.E(errors.Invalid, "invalid request body", err))
		return
	}
	res, err := s.store.Align(r.Context(), req.QueryFile, req.TargetFile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleComparisons(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Comparisons []comparison.Summary `json:"comparisons"`
	}{s.store.List()})
}

// handleComparison serves /api/comparison/<id>/data and
// /api/comparison/<id>/delete.
func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/comparison/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	switch parts[1] {
	case "data":
		if allowMethod(w, r, http.MethodGet) {
			s.serveData(w, r, id)
		}
	case "delete":
		if !allowMethod(w, r, http.MethodDelete) {
			return
		}
		deleted, err := s.store.Delete(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Status  string   `json:"status"`
			Deleted []string `json:"deleted"`
		}{comparison.StatusSuccess, deleted})
	default:
		http.NotFound(w, r)
	}
}

// serveData writes a comparison document. Documents do not change once
// written, so the ETag is a hash of the contents.
func (s *Server) serveData(w http.ResponseWriter, r *http.Request, id string) {
	data, err := s.store.Data(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	etag := fmt.Sprintf(`"%016x"`, seahash.Sum64(data))
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Vary", "Accept-Encoding")
	h.Set("Content-Type", "application/json")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if !acceptsGzip(r) {
		if _, err := w.Write(data); err != nil {
			log.Debug.Printf("comparison %s: write: %v", id, err)
		}
		return
	}
	h.Set("Content-Encoding", "gzip")
	gz := gzip.NewWriter(w)
	_, err = gz.Write(data)
	if e := gz.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		log.Debug.Printf("comparison %s: write: %v", id, err)
	}
}

func acceptsGzip(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if i := strings.IndexByte(enc, ';'); i >= 0 {
			enc = enc[:i]
		}
		if strings.TrimSpace(enc) == "gzip" {
			return true
		}
	}
	return false
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	return false
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// errorStatus maps an error kind to an HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(errors.Invalid, err):
		return http.StatusBadRequest
	case errors.Is(errors.NotExist, err):
		return http.StatusNotFound
	case errors.Is(errors.Timeout, err):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError writes err as an error body. The message of the outermost
// error is the "error" field; the error it wraps, if any, is the details.
func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	body := errorBody{Error: err.Error()}
	if e, ok := err.(*errors.Error); ok && e.Message != "" {
		body.Error = e.Message
		if e.Err != nil {
			body.Details = e.Err.Error()
		}
	}
	if status == http.StatusInternalServerError {
		log.Error.Printf("%v", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug.Printf("write response: %v", err)
	}
}
