package synteny_test

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/synteny/synteny"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

const (
	queryIndex  = "contigA\t100\ncontigB\t200\n"
	targetIndex = "chr1\t500\n"
)

func pafLine(fields ...string) string { return strings.Join(fields, "\t") + "\n" }

func loadTestIndexes(t *testing.T) (query, target []synteny.SequenceEntry) {
	query, err := synteny.LoadIndex(strings.NewReader(queryIndex), "query.fai", synteny.Query)
	require.NoError(t, err)
	target, err = synteny.LoadIndex(strings.NewReader(targetIndex), "target.fai", synteny.Target)
	require.NoError(t, err)
	return query, target
}

func TestConvertRoundTrip(t *testing.T) {
	query, target := loadTestIndexes(t)
	paf := pafLine("contigA", "100", "10", "60", "+", "chr1", "500", "20", "70", "45", "50", "60") +
		pafLine("contigB", "200", "0", "100", "-", "chr1", "500", "300", "400", "100", "100", "60") +
		pafLine("contigB", "200", "150", "200", "+", "chr1", "500", "100", "150", "40", "50", "12", "tp:A:S")
	doc, err := synteny.Convert(query, target, strings.NewReader(paf), synteny.DefaultOpts)
	assert.NoError(t, err)

	assert.EQ(t, len(doc.QuerySequences), 2)
	expect.EQ(t, doc.QuerySequences[0].Offset, int64(0))
	expect.EQ(t, doc.QuerySequences[1].Offset, int64(100))
	assert.EQ(t, len(doc.TargetSequences), 1)
	expect.EQ(t, doc.TargetSequences[0].Offset, int64(0))

	assert.EQ(t, len(doc.Links), 3)
	expect.EQ(t, doc.Links[0], synteny.Link{
		QStart: 10, QEnd: 60, TStart: 20, TEnd: 70,
		Identity: 0.9, ColorTier: synteny.Mid,
		QueryName: "contigA", TargetName: "chr1", Strand: "+", MapQ: 60,
	})
	// contigB starts at 100 on the query axis.
	expect.EQ(t, doc.Links[1].QStart, int64(100))
	expect.EQ(t, doc.Links[1].QEnd, int64(200))
	expect.EQ(t, doc.Links[1].TStart, int64(300))
	expect.EQ(t, doc.Links[1].ColorTier, synteny.High)
	expect.EQ(t, doc.Links[1].Strand, "-")
	expect.EQ(t, doc.Links[2].QStart, int64(250))
	expect.EQ(t, doc.Links[2].QEnd, int64(300))
	expect.EQ(t, doc.Links[2].ColorTier, synteny.Minimal)

	expect.EQ(t, doc.Metadata.TotalLinks, 3)
	expect.EQ(t, doc.Metadata.QueryLength, int64(300))
	expect.EQ(t, doc.Metadata.TargetLength, int64(500))
	expect.EQ(t, doc.Metadata.QueryLabel, "Assembly")
	expect.EQ(t, doc.Tiers, synteny.Tiers)
}

func TestConvertSkipsMalformedAndUnknown(t *testing.T) {
	query, target := loadTestIndexes(t)
	paf := pafLine("contigA", "100", "0", "50", "+", "chr1", "500", "0", "50", "50", "50", "60") +
		pafLine("contigA", "100", "0", "50", "+", "chr1", "500", "0") + // 8 fields
		pafLine("contigA", "100", "0", "50", "+", "chr1", "500", "0", "50", "51", "50", "60") + // matches > block
		pafLine("contigC", "100", "0", "50", "+", "chr1", "500", "0", "50", "50", "50", "60") + // unknown query
		pafLine("contigA", "100", "0", "50", "+", "chr2", "500", "0", "50", "50", "50", "60") + // unknown target
		pafLine("contigB", "200", "0", "50", "+", "chr1", "500", "0", "50", "44", "50", "60")
	doc, err := synteny.Convert(query, target, strings.NewReader(paf), synteny.DefaultOpts)
	assert.NoError(t, err)
	assert.EQ(t, len(doc.Links), 2)
	expect.EQ(t, doc.Links[0].QueryName, "contigA")
	expect.EQ(t, doc.Links[1].QueryName, "contigB")
	expect.EQ(t, doc.Links[1].ColorTier, synteny.Low)
	expect.EQ(t, doc.Metadata.Skipped, 2)
	expect.EQ(t, doc.Metadata.Dropped, 2)
}

// A line with an unbalanced quote is skipped on its own.
func TestConvertStrayQuote(t *testing.T) {
	query, target := loadTestIndexes(t)
	paf := "\"garbage\n" +
		pafLine("contigA", "100", "0", "50", "+", "chr1", "500", "0", "50", "50", "50", "60") +
		pafLine("contigA", "100", "50", "100", "+", "chr1", "500", "50", "100", "50", "50", "60", `cg:Z:"50M`) +
		pafLine("contigB", "200", "0", "50", "+", "chr1", "500", "100", "150", "50", "50", "60")
	doc, err := synteny.Convert(query, target, strings.NewReader(paf), synteny.DefaultOpts)
	assert.NoError(t, err)
	assert.EQ(t, len(doc.Links), 3)
	expect.EQ(t, doc.Links[1].QStart, int64(50))
	expect.EQ(t, doc.Links[2].QStart, int64(100))
	expect.EQ(t, doc.Metadata.Skipped, 1)
}

func TestConvertFilters(t *testing.T) {
	query, target := loadTestIndexes(t)
	paf := pafLine("contigB", "200", "0", "150", "+", "chr1", "500", "0", "150", "150", "150", "60") +
		pafLine("contigB", "200", "0", "50", "+", "chr1", "500", "0", "50", "50", "50", "60") +
		pafLine("contigB", "200", "0", "150", "+", "chr1", "500", "0", "150", "100", "150", "60")
	opts := synteny.DefaultOpts
	opts.MinLength = 100
	opts.MinIdentity = 0.8
	doc, err := synteny.Convert(query, target, strings.NewReader(paf), opts)
	assert.NoError(t, err)
	assert.EQ(t, len(doc.Links), 1)
	expect.EQ(t, doc.Metadata.Filtered, 2)
}

func TestConvertEmpty(t *testing.T) {
	doc, err := synteny.Convert(nil, nil, strings.NewReader(""), synteny.DefaultOpts)
	assert.NoError(t, err)
	var buf bytes.Buffer
	assert.NoError(t, synteny.WriteJSON(&buf, doc))
	// Empty lists are emitted as [] rather than null.
	expect.HasSubstr(t, buf.String(), `"links": []`)
	expect.HasSubstr(t, buf.String(), `"querySequences": []`)
}

func TestConvertFiles(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	write := func(name, data string) string {
		path := filepath.Join(tmpdir, name)
		assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
		return path
	}
	pafPath := write("aln.paf", pafLine("contigA", "100", "10", "60", "+", "chr1", "500", "20", "70", "45", "50", "60"))
	queryPath := write("asm.fa.fai", queryIndex)
	targetPath := write("ref.fa.fai", targetIndex)

	for _, out := range []string{"out.json", "out.json.gz"} {
		outPath := filepath.Join(tmpdir, out)
		doc, err := synteny.ConvertFiles(ctx, pafPath, queryPath, targetPath, outPath, synteny.DefaultOpts)
		assert.NoError(t, err)
		got, err := synteny.ReadFile(ctx, outPath)
		assert.NoError(t, err)
		expect.EQ(t, got, doc)
	}

	data, err := ioutil.ReadFile(filepath.Join(tmpdir, "out.json"))
	assert.NoError(t, err)
	var raw map[string]json.RawMessage
	assert.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"querySequences", "targetSequences", "links"} {
		_, ok := raw[key]
		expect.True(t, ok, key)
	}

	// A malformed index is fatal.
	badPath := write("bad.fai", "chr1\tzero\n")
	_, err = synteny.ConvertFiles(ctx, pafPath, queryPath, badPath, filepath.Join(tmpdir, "bad.json"), synteny.DefaultOpts)
	_, ok := err.(*synteny.IndexError)
	expect.True(t, ok)
	_, err = os.Stat(filepath.Join(tmpdir, "bad.json"))
	expect.True(t, os.IsNotExist(err))
}
