package fasta_test

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/synteny/encoding/fasta"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var fastaData = ">seq1\n" + "ACGTA\nCGTAC\nGT\n" + ">seq2 A viral sequence\n" + "ACGT\n" + "ACGT\n"

func TestScanLengths(t *testing.T) {
	seqs, err := fasta.ScanLengths(strings.NewReader(fastaData))
	assert.NoError(t, err)
	assert.EQ(t, seqs, []fasta.Sequence{{"seq1", 12}, {"seq2", 8}})

	// MS-DOS newlines and blank lines don't count as bases.
	seqs, err = fasta.ScanLengths(strings.NewReader(">a\r\nAC\r\n\r\nGT\r\n>b\tdesc\r\nA"))
	assert.NoError(t, err)
	assert.EQ(t, seqs, []fasta.Sequence{{"a", 4}, {"b", 1}})

	// Lengths agree with the index, whitespace included.
	padded := ">a\nACGT  \nAC\t\n>b\r\nAC \r\n"
	seqs, err = fasta.ScanLengths(strings.NewReader(padded))
	assert.NoError(t, err)
	assert.EQ(t, seqs, []fasta.Sequence{{"a", 9}, {"b", 3}})
	var idx bytes.Buffer
	assert.NoError(t, fasta.GenerateIndex(&idx, strings.NewReader(padded)))
	expect.EQ(t, idx.String(), "a\t9\t3\t6\t7\nb\t3\t18\t3\t5\n")

	_, err = fasta.ScanLengths(strings.NewReader(""))
	expect.Regexp(t, err, "empty FASTA")
	_, err = fasta.ScanLengths(strings.NewReader("ACGT\n>a\nACGT\n"))
	expect.Regexp(t, err, "before the first header")
	_, err = fasta.ScanLengths(strings.NewReader(">\nACGT\n"))
	expect.Regexp(t, err, "empty sequence name")
}

func TestGenerateIndex(t *testing.T) {
	generateIndex := func(fa string) (faidx string) {
		idx := bytes.Buffer{}
		assert.NoError(t, fasta.GenerateIndex(&idx, strings.NewReader(fa)))
		return idx.String()
	}

	fa := `>E0
GGTGAAATC
CCTGAAATC
AAAATTGCT
>E1
GTCCCTCCCCAGACATGGCCCTGGGAGGC
>E2
CCGCGCCCGCGCCCCCGCCGCC
>E3
GTCAAGGTTGCACAG
>E4
ATGAATCATGTGGTAAAA
`
	assert.EQ(t, generateIndex(fa), `E0	27	4	9	10
E1	29	38	29	30
E2	22	72	22	23
E3	15	99	15	16
E4	18	119	18	19
`)

	// MS-DOS newline encoding.
	assert.EQ(t, generateIndex(">E0\r\nGGGG\r\n>E1\r\nAAAAA\r\n"),
		`E0	4	5	4	6
E1	5	16	5	7
`)

	// No newline at the end.
	assert.EQ(t, generateIndex(">E0\nGGGG\n>E1\nCCCCC\nAAAAA"),
		`E0	4	4	4	5
E1	10	13	5	6
`)
	assert.EQ(t, generateIndex(">E0\nGGGG\n>E1\nAAAAA"),
		`E0	4	4	4	5
E1	5	13	5	5
`)

	// Records without bases are left out.
	assert.EQ(t, generateIndex(">E0\n>E1\nAC\n"), "E1\t2\t8\t2\t3\n")

	idx := bytes.Buffer{}
	expect.Regexp(t, fasta.GenerateIndex(&idx, strings.NewReader("")), "empty FASTA")
	expect.Regexp(t, fasta.GenerateIndex(&idx, strings.NewReader("AC\n>E0\nAC\n")), "before the first header")
}

// The generated index must agree with the lengths computed by scanning.
func TestGenerateIndexMatchesScanLengths(t *testing.T) {
	idx := bytes.Buffer{}
	assert.NoError(t, fasta.GenerateIndex(&idx, strings.NewReader(fastaData)))
	assert.EQ(t, idx.String(), "seq1\t12\t6\t5\t6\n"+"seq2\t8\t44\t4\t5\n")
}

func TestGenerateIndexFile(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	faPath := filepath.Join(tmpdir, "genome.fa")
	assert.NoError(t, ioutil.WriteFile(faPath, []byte(fastaData), 0644))
	idxPath, err := fasta.GenerateIndexFile(ctx, faPath)
	assert.NoError(t, err)
	assert.EQ(t, idxPath, faPath+fasta.IndexSuffix)
	data, err := ioutil.ReadFile(idxPath)
	assert.NoError(t, err)
	assert.EQ(t, string(data), "seq1\t12\t6\t5\t6\nseq2\t8\t44\t4\t5\n")

	_, err = fasta.GenerateIndexFile(ctx, filepath.Join(tmpdir, "missing.fa"))
	expect.NotNil(t, err)
}

func TestEnsureIndexes(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	fresh := filepath.Join(tmpdir, "fresh.fa")
	assert.NoError(t, ioutil.WriteFile(fresh, []byte(fastaData), 0644))
	// An existing index is left alone, even if it disagrees with the FASTA.
	indexed := filepath.Join(tmpdir, "indexed.fa")
	assert.NoError(t, ioutil.WriteFile(indexed, []byte(fastaData), 0644))
	assert.NoError(t, ioutil.WriteFile(indexed+fasta.IndexSuffix, []byte("old\t1\n"), 0644))

	paths, err := fasta.EnsureIndexes(ctx, fresh, indexed)
	assert.NoError(t, err)
	assert.EQ(t, paths, []string{fresh + ".fai", indexed + ".fai"})
	data, err := ioutil.ReadFile(paths[0])
	assert.NoError(t, err)
	expect.EQ(t, string(data), "seq1\t12\t6\t5\t6\nseq2\t8\t44\t4\t5\n")
	data, err = ioutil.ReadFile(paths[1])
	assert.NoError(t, err)
	expect.EQ(t, string(data), "old\t1\n")

	path, err := fasta.EnsureIndex(ctx, fresh)
	assert.NoError(t, err)
	expect.EQ(t, path, fresh+".fai")

	_, err = fasta.EnsureIndexes(ctx, fresh, filepath.Join(tmpdir, "missing.fa"))
	expect.NotNil(t, err)
}
