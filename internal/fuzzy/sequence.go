package fuzzy

import "sort"

// popularMinLength is the length of b from which very common runes stop
// seeding matches.
const popularMinLength = 200

// Block is a matching run: a[A:A+Size] == b[B:B+Size].
type Block struct {
	A    int
	B    int
	Size int
}

// SequenceMatcher compares two rune sequences. The second sequence is indexed
// once, so callers comparing one query against many candidates should set the
// query with SetSeq2 and swap candidates in with SetSeq1.
type SequenceMatcher struct {
	a          []rune
	b          []rune
	b2j        map[rune][]int
	fullBCount map[rune]int
	blocks     []Block
}

// NewSequenceMatcher returns a matcher comparing a against b.
func NewSequenceMatcher(a, b string) *SequenceMatcher {
	m := &SequenceMatcher{}
	m.SetSeq2(b)
	m.SetSeq1(a)
	return m
}

// SetSeq1 replaces the first sequence.
func (m *SequenceMatcher) SetSeq1(a string) {
	m.a = []rune(a)
	m.blocks = nil
}

// SetSeq2 replaces and indexes the second sequence.
func (m *SequenceMatcher) SetSeq2(b string) {
	m.b = []rune(b)
	m.blocks = nil
	m.fullBCount = nil
	m.indexB()
}

func (m *SequenceMatcher) indexB() {
	m.b2j = make(map[rune][]int)
	for i, r := range m.b {
		m.b2j[r] = append(m.b2j[r], i)
	}
	n := len(m.b)
	if n < popularMinLength {
		return
	}
	limit := n/100 + 1
	for r, positions := range m.b2j {
		if len(positions) > limit {
			delete(m.b2j, r)
		}
	}
}

func (m *SequenceMatcher) longestMatch(alo, ahi, blo, bhi int) Block {
	besti, bestj, bestSize := alo, blo, 0
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestSize {
				besti, bestj, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}

	// Popular runes never seed a match but may still extend one.
	for besti > alo && bestj > blo && m.a[besti-1] == m.b[bestj-1] {
		besti, bestj, bestSize = besti-1, bestj-1, bestSize+1
	}
	for besti+bestSize < ahi && bestj+bestSize < bhi && m.a[besti+bestSize] == m.b[bestj+bestSize] {
		bestSize++
	}
	return Block{A: besti, B: bestj, Size: bestSize}
}

// MatchingBlocks returns the non-adjacent matching runs in ascending order,
// terminated by a zero-size sentinel block at (len(a), len(b)).
func (m *SequenceMatcher) MatchingBlocks() []Block {
	if m.blocks != nil {
		return m.blocks
	}
	la, lb := len(m.a), len(m.b)

	type span struct{ alo, ahi, blo, bhi int }
	stack := []span{{0, la, 0, lb}}
	var found []Block
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		blk := m.longestMatch(s.alo, s.ahi, s.blo, s.bhi)
		if blk.Size == 0 {
			continue
		}
		found = append(found, blk)
		if s.alo < blk.A && s.blo < blk.B {
			stack = append(stack, span{s.alo, blk.A, s.blo, blk.B})
		}
		if blk.A+blk.Size < s.ahi && blk.B+blk.Size < s.bhi {
			stack = append(stack, span{blk.A + blk.Size, s.ahi, blk.B + blk.Size, s.bhi})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].A != found[j].A {
			return found[i].A < found[j].A
		}
		if found[i].B != found[j].B {
			return found[i].B < found[j].B
		}
		return found[i].Size < found[j].Size
	})

	blocks := make([]Block, 0, len(found)+1)
	var cur Block
	for _, blk := range found {
		if cur.A+cur.Size == blk.A && cur.B+cur.Size == blk.B {
			cur.Size += blk.Size
			continue
		}
		if cur.Size > 0 {
			blocks = append(blocks, cur)
		}
		cur = blk
	}
	if cur.Size > 0 {
		blocks = append(blocks, cur)
	}
	blocks = append(blocks, Block{A: la, B: lb})
	m.blocks = blocks
	return blocks
}

// Ratio is the exact similarity 2*M/T where M is the number of matched runes
// and T the combined length. Two empty sequences are identical.
func (m *SequenceMatcher) Ratio() float64 {
	matches := 0
	for _, blk := range m.MatchingBlocks() {
		matches += blk.Size
	}
	return ratio(matches, len(m.a)+len(m.b))
}

// QuickRatio is an upper bound on Ratio computed from rune multisets.
func (m *SequenceMatcher) QuickRatio() float64 {
	if m.fullBCount == nil {
		m.fullBCount = make(map[rune]int, len(m.b))
		for _, r := range m.b {
			m.fullBCount[r]++
		}
	}
	avail := make(map[rune]int)
	matches := 0
	for _, r := range m.a {
		n, ok := avail[r]
		if !ok {
			n = m.fullBCount[r]
		}
		avail[r] = n - 1
		if n > 0 {
			matches++
		}
	}
	return ratio(matches, len(m.a)+len(m.b))
}

// RealQuickRatio is an upper bound on QuickRatio derived from lengths only.
func (m *SequenceMatcher) RealQuickRatio() float64 {
	la, lb := len(m.a), len(m.b)
	return ratio(min(la, lb), la+lb)
}

func ratio(matches, length int) float64 {
	if length == 0 {
		return 1.0
	}
	return 2.0 * float64(matches) / float64(length)
}
