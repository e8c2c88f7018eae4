package cmd

import (
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/synteny/aligner"
	"github.com/grailbio/synteny/comparison"
	"github.com/grailbio/synteny/encoding/fasta"
	"github.com/grailbio/synteny/server"
	"github.com/grailbio/synteny/synteny"
)

// replaceExt replaces the extension of path, ignoring a trailing ".gz".
func replaceExt(path, ext string) string {
	path = strings.TrimSuffix(path, ".gz")
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func convert(opts synteny.Opts, pafPath, queryIndex, targetIndex, outPath string) error {
	if outPath == "" {
		outPath = replaceExt(pafPath, ".json")
	}
	if opts.MinIdentity < 0 || opts.MinIdentity > 1 {
		return errors.E(errors.Invalid, "-min-identity must be in [0, 1]")
	}
	_, err := synteny.ConvertFiles(vcontext.Background(), pafPath, queryIndex, targetIndex, outPath, opts)
	return err
}

func index(fastaPaths []string) error {
	ctx := vcontext.Background()
	return traverse.Each(len(fastaPaths), func(i int) error {
		path, err := fasta.GenerateIndexFile(ctx, fastaPaths[i])
		if err == nil {
			log.Printf("wrote %s", path)
		}
		return err
	})
}

func align(m aligner.Minimap2, opts synteny.Opts, queryPath, targetPath, outPath, pafPath string) error {
	ctx := vcontext.Background()
	if pafPath == "" {
		pafPath = replaceExt(outPath, ".paf")
	}
	if err := m.Align(ctx, queryPath, targetPath, pafPath); err != nil {
		return err
	}
	indexes, err := fasta.EnsureIndexes(ctx, queryPath, targetPath)
	if err != nil {
		return err
	}
	return convert(opts, pafPath, indexes[0], indexes[1], outPath)
}

func serve(opts server.Opts) error {
	ctx, stop := signal.NotifyContext(vcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	store, err := comparison.Open(ctx, opts.StoreOpts(), opts.Aligner())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error.Printf("close store: %v", err)
		}
	}()
	return server.New(store, opts).ListenAndServe(ctx)
}
