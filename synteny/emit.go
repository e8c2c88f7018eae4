package synteny

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// WriteJSON writes doc to w as indented JSON.
func WriteJSON(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteFile writes doc to path. A path ending in ".gz" is gzip-compressed.
func WriteFile(ctx context.Context, path string, doc *Document) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	var e errors.Once
	w := out.Writer(ctx)
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		e.Set(WriteJSON(gz, doc))
		e.Set(gz.Close())
	} else {
		e.Set(WriteJSON(w, doc))
	}
	e.Set(out.Close(ctx))
	if err := e.Err(); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}

// ReadFile reads a document written by WriteFile.
func ReadFile(ctx context.Context, path string) (doc *Document, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open", path)
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
	doc = &Document{}
	if err = json.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.E(errors.Invalid, err, "decode", path)
	}
	return doc, nil
}
