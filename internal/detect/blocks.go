package detect

import "github.com/asynkron/dupsentry/internal/blocktree"

// detectBlocks groups blocks by the hash of their full token slice,
// requiring a minimum span length. Re-verification compares each
// bucket's members' full token-key slices, not just the hash.
func detectBlocks(docs []doc, opts Options) []Group {
	type member struct {
		docID, blockID int
	}
	buckets := make(map[uint64][]member)

	for docID, d := range docs {
		for blockID, b := range d.blocks {
			span := b.TokenEnd - b.TokenStart
			if span < opts.MinTokenLen {
				continue
			}
			h := blocktree.FullSliceHash(d.tokens, b)
			buckets[h] = append(buckets[h], member{docID, blockID})
		}
	}

	keysOf := func(m member) []uint64 {
		d := docs[m.docID]
		b := d.blocks[m.blockID]
		keys := make([]uint64, b.TokenEnd-b.TokenStart)
		for i := range keys {
			keys[i] = d.tokens[b.TokenStart+i].Key().Hash()
		}
		return keys
	}
	sameKeys := func(a, b []uint64) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}

	var groups []Group
	for h, members := range buckets {
		representative := keysOf(members[0])
		matching := make([]member, 0, len(members))
		for _, m := range members {
			if sameKeys(keysOf(m), representative) {
				matching = append(matching, m)
			}
		}
		if len(matching) < 2 {
			continue
		}

		occs := make([]Occurrence, 0, len(matching))
		for _, m := range matching {
			d := docs[m.docID]
			b := d.blocks[m.blockID]
			occs = append(occs, d.occurrence(int(b.StartLine), int(b.EndLine)))
		}
		if g, ok := finalizeGroup(h, len(representative), "", occs, opts.CrossRepoOnly); ok {
			groups = append(groups, g)
		}
	}
	return truncateGroups(sortGroups(groups), opts.MaxReportItems)
}

// detectSubtrees groups blocks by the hash of their subtree
// representation (children folded into a single marker token), with
// bottom-up memoization via one blocktree.SubtreeHasher per document.
func detectSubtrees(docs []doc, opts Options) []Group {
	type member struct {
		docID, blockID int
	}
	buckets := make(map[uint64][]member)
	hashers := make([]*blocktree.SubtreeHasher, len(docs))

	for docID, d := range docs {
		hasher := blocktree.NewSubtreeHasher(d.tokens, d.blocks)
		hashers[docID] = hasher
		for blockID, b := range d.blocks {
			span := b.TokenEnd - b.TokenStart
			if span < opts.MinTokenLen {
				continue
			}
			h := hasher.Hash(blockID)
			buckets[h] = append(buckets[h], member{docID, blockID})
		}
	}

	repOf := func(m member) []uint64 { return hashers[m.docID].Representation(m.blockID) }
	sameRep := func(a, b []uint64) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}

	var groups []Group
	for h, members := range buckets {
		representative := repOf(members[0])
		matching := make([]member, 0, len(members))
		for _, m := range members {
			if sameRep(repOf(m), representative) {
				matching = append(matching, m)
			}
		}
		if len(matching) < 2 {
			continue
		}

		occs := make([]Occurrence, 0, len(matching))
		normalizedLen := 0
		for _, m := range matching {
			d := docs[m.docID]
			b := d.blocks[m.blockID]
			if span := b.TokenEnd - b.TokenStart; span > normalizedLen {
				normalizedLen = span
			}
			occs = append(occs, d.occurrence(int(b.StartLine), int(b.EndLine)))
		}
		if g, ok := finalizeGroup(h, normalizedLen, "", occs, opts.CrossRepoOnly); ok {
			groups = append(groups, g)
		}
	}
	return truncateGroups(sortGroups(groups), opts.MaxReportItems)
}
