// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package synteny converts minimap2 PAF alignments between a query assembly
// and a target (reference) assembly into the JSON document drawn by the
// synteny viewer.
//
// Both assemblies are laid out on a single axis each: every sequence starts
// where the previous one in its index file ends. Each PAF record becomes a
// Link whose endpoints are the record's local coordinates shifted by the
// offsets of the query and target sequences, colored by percent identity.
//
// Conversion is a single pass over the PAF input. Malformed PAF lines and
// lines that name a sequence missing from an index are skipped and counted;
// a malformed index aborts the conversion.
package synteny
