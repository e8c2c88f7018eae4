package cmd

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/synteny/aligner"
	"github.com/grailbio/synteny/synteny"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"v.io/x/lib/gosh"
)

const (
	queryFASTA  = ">ctg1\nACGTACGTAC\nACGTACGTAC\n>ctg2\nGGGG\n"
	targetFASTA = ">chr1\nACGTACGTACACGTACGTACGGGG\n"
	testPAF     = "ctg1\t20\t0\t20\t+\tchr1\t24\t0\t20\t19\t20\t60\n" +
		"ctg2\t4\t0\t4\t+\tchr1\t24\t20\t24\t4\t4\t60\n" +
		"ctg3\t4\t0\t4\t+\tchr1\t24\t20\t24\t4\t4\t60\n"
)

func writeFile(t *testing.T, path, data string) {
	assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
}

func TestReplaceExt(t *testing.T) {
	expect.EQ(t, replaceExt("a/b.paf", ".json"), "a/b.json")
	expect.EQ(t, replaceExt("a/b.paf.gz", ".json"), "a/b.json")
	expect.EQ(t, replaceExt("out.json", ".paf"), "out.paf")
	expect.EQ(t, replaceExt("noext", ".json"), "noext.json")
}

func TestIndexAndConvert(t *testing.T) {
	sh := gosh.NewShell(nil)
	defer sh.Cleanup()
	dir := sh.MakeTempDir()
	query, target := filepath.Join(dir, "q.fa"), filepath.Join(dir, "t.fa")
	writeFile(t, query, queryFASTA)
	writeFile(t, target, targetFASTA)
	pafPath := filepath.Join(dir, "aln.paf")
	writeFile(t, pafPath, testPAF)

	assert.NoError(t, index([]string{query, target}))
	fai, err := ioutil.ReadFile(query + ".fai")
	assert.NoError(t, err)
	expect.EQ(t, string(fai), "ctg1\t20\t6\t10\t11\nctg2\t4\t34\t4\t5\n")

	opts := synteny.DefaultOpts
	opts.QueryLabel = "Contigs"
	assert.NoError(t, convert(opts, pafPath, query+".fai", target+".fai", ""))
	doc, err := synteny.ReadFile(vcontext.Background(), filepath.Join(dir, "aln.json"))
	assert.NoError(t, err)
	expect.EQ(t, len(doc.Links), 2)
	expect.EQ(t, doc.Links[1].QStart, int64(20))
	expect.EQ(t, doc.Links[1].TStart, int64(20))
	expect.EQ(t, doc.Metadata.Dropped, 1)
	expect.EQ(t, doc.Metadata.QueryLabel, "Contigs")
	expect.EQ(t, doc.Metadata.TargetLabel, "Reference")

	opts.MinIdentity = 0.99
	out := filepath.Join(dir, "filtered.json.gz")
	assert.NoError(t, convert(opts, pafPath, query+".fai", target+".fai", out))
	doc, err = synteny.ReadFile(vcontext.Background(), out)
	assert.NoError(t, err)
	expect.EQ(t, len(doc.Links), 1)
	expect.EQ(t, doc.Links[0].QueryName, "ctg2")

	opts.MinIdentity = 1.5
	expect.Regexp(t, convert(opts, pafPath, query+".fai", target+".fai", out), "min-identity")
}

func TestAlign(t *testing.T) {
	sh := gosh.NewShell(nil)
	defer sh.Cleanup()
	dir := sh.MakeTempDir()
	query, target := filepath.Join(dir, "q.fa"), filepath.Join(dir, "t.fa")
	writeFile(t, query, queryFASTA)
	writeFile(t, target, targetFASTA)
	pafSource := filepath.Join(dir, "source.paf")
	writeFile(t, pafSource, testPAF)
	bin := filepath.Join(dir, "minimap2")
	assert.NoError(t, ioutil.WriteFile(bin, []byte("#!/bin/sh\nexec cat "+pafSource+"\n"), 0755))

	m := aligner.DefaultMinimap2
	m.Path = bin
	out := filepath.Join(dir, "cmp.json")
	assert.NoError(t, align(m, synteny.DefaultOpts, query, target, out, ""))

	_, err := os.Stat(filepath.Join(dir, "cmp.paf"))
	expect.NoError(t, err)
	// Both indexes were generated.
	_, err = os.Stat(target + ".fai")
	expect.NoError(t, err)
	doc, err := synteny.ReadFile(vcontext.Background(), out)
	assert.NoError(t, err)
	expect.EQ(t, len(doc.QuerySequences), 2)
	expect.EQ(t, doc.Metadata.TargetLength, int64(24))
	expect.EQ(t, len(doc.Links), 2)

	m.Path = filepath.Join(dir, "no-such-minimap2")
	expect.Regexp(t, align(m, synteny.DefaultOpts, query, target, out, ""), "please install minimap2")
}
