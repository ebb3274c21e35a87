package detect

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"

	"github.com/asynkron/dupsentry/internal/fingerprint"
	"github.com/asynkron/dupsentry/internal/normalize"
)

// filePreviewSampleSize bounds the head and tail sample (up to 4 KiB each)
// that goes into the fingerprint; re-verification does not use it.
const filePreviewSampleSize = 4096

// fileFingerprint mixes length, head/tail samples, and a full-content
// hash into one 64-bit key, reducing first-pass collisions before
// re-verification even runs. The head/tail sample is hashed with xxhash
// (fast, non-cryptographic) and the full content with blake3 (cheap even
// at file scale, stronger collision resistance than the 64-bit rolling hash
// the winnowing engine uses internally) before both are folded together
// with FNV-1a-64.
func fileFingerprint(ws []byte) uint64 {
	head := ws
	if len(head) > filePreviewSampleSize {
		head = head[:filePreviewSampleSize]
	}
	tail := ws
	if len(tail) > filePreviewSampleSize {
		tail = tail[len(tail)-filePreviewSampleSize:]
	}
	sample := make([]byte, 0, len(head)+len(tail))
	sample = append(sample, head...)
	sample = append(sample, tail...)

	h1 := xxhash.Sum64(sample)
	full := blake3.Sum256(ws)
	h2 := binary.BigEndian.Uint64(full[:8])
	return fingerprint.FNV1a64Uint64s([]uint64{h1, h2, uint64(len(ws))})
}

// detectFileDuplicates groups whole files bucketed by fileFingerprint,
// then re-verified by byte-comparing each member's full whitespace-stripped
// content against the bucket's first member, whatever the file size.
func detectFileDuplicates(docs []doc, opts Options) []Group {
	type bucketEntry struct {
		representative []byte
		docIDs         []int
	}
	buckets := make(map[uint64]*bucketEntry)

	stripped := make([][]byte, len(docs))
	for i, d := range docs {
		ws := normalize.WhitespaceStripped(d.ref.Bytes)
		stripped[i] = ws
		h := fileFingerprint(ws)
		be, ok := buckets[h]
		if !ok {
			be = &bucketEntry{representative: ws}
			buckets[h] = be
		}
		be.docIDs = append(be.docIDs, i)
	}

	var groups []Group
	for h, be := range buckets {
		matching := make([]int, 0, len(be.docIDs))
		for _, docID := range be.docIDs {
			if bytes.Equal(stripped[docID], be.representative) {
				matching = append(matching, docID)
			}
		}
		if len(matching) < 2 {
			continue
		}

		occs := make([]Occurrence, 0, len(matching))
		for _, docID := range matching {
			d := docs[docID]
			occs = append(occs, d.occurrence(1, countLines(d.ref.Bytes)))
		}
		if g, ok := finalizeGroup(h, len(be.representative), "", occs, opts.CrossRepoOnly); ok {
			groups = append(groups, g)
		}
	}
	return truncateGroups(sortGroups(groups), opts.MaxReportItems)
}
