// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
Command synteny builds whole-genome synteny comparisons and serves them to the
browser viewer.

	synteny index genome.fa
	synteny convert [-min-length N] [-min-identity F] aln.paf query.fa.fai target.fa.fai [out.json]
	synteny align [-preset asm5] query.fa target.fa out.json
	synteny serve [-config synteny.yaml] [-addr :5000]

"convert" turns minimap2 PAF output into the viewer's JSON document. "align"
runs minimap2 first. "serve" runs the web server that accepts FASTA uploads
and keeps the comparisons built from them.
*/
package main
