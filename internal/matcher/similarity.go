package matcher

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// autojunkMinLength is the length of b at which elements appearing in more
// than 1% of positions stop seeding matches.
const autojunkMinLength = 200

// Normalize prepares a label for comparison: NFKC, trimmed, lower case.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(label)))
}

// SequenceRatio returns 2*M/T for normalized a and b, where M is the number
// of characters in matching blocks and T the combined length. Two empty
// labels compare as identical.
func SequenceRatio(a, b string) float64 {
	ra, rb := []rune(Normalize(a)), []rune(Normalize(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(newBlockMatcher(ra, rb).matchedLength()) / float64(total)
}

// LevenshteinRatio returns (T-D)/T where D is the edit distance with
// substitutions costing two. Two empty labels compare as identical.
func LevenshteinRatio(a, b string) float64 {
	ra, rb := []rune(Normalize(a)), []rune(Normalize(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	d := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	return float64(total-d) / float64(total)
}

type block struct {
	a, b, size int
}

// blockMatcher finds longest common blocks of a in b, recursing on the
// unmatched pieces either side of each block.
type blockMatcher struct {
	a, b []rune
	b2j  map[rune][]int
}

func newBlockMatcher(a, b []rune) *blockMatcher {
	b2j := make(map[rune][]int)
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	if n := len(b); n >= autojunkMinLength {
		popular := n/100 + 1
		for r, idxs := range b2j {
			if len(idxs) > popular {
				delete(b2j, r)
			}
		}
	}

	return &blockMatcher{a: a, b: b, b2j: b2j}
}

func (m *blockMatcher) longestMatch(alo, ahi, blo, bhi int) block {
	best := block{a: alo, b: blo}
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
			if k > best.size {
				best = block{a: i - k + 1, b: j - k + 1, size: k}
			}
		}
		j2len = next
	}

	// Popular elements were dropped from b2j; grow the block across them.
	for best.a > alo && best.b > blo && m.a[best.a-1] == m.b[best.b-1] {
		best.a--
		best.b--
		best.size++
	}
	for best.a+best.size < ahi && best.b+best.size < bhi && m.a[best.a+best.size] == m.b[best.b+best.size] {
		best.size++
	}

	return best
}

func (m *blockMatcher) blocks() []block {
	var found []block
	queue := [][4]int{{0, len(m.a), 0, len(m.b)}}
	for len(queue) > 0 {
		q := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		alo, ahi, blo, bhi := q[0], q[1], q[2], q[3]

		x := m.longestMatch(alo, ahi, blo, bhi)
		if x.size == 0 {
			continue
		}
		found = append(found, x)
		if alo < x.a && blo < x.b {
			queue = append(queue, [4]int{alo, x.a, blo, x.b})
		}
		if x.a+x.size < ahi && x.b+x.size < bhi {
			queue = append(queue, [4]int{x.a + x.size, ahi, x.b + x.size, bhi})
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].a != found[j].a {
			return found[i].a < found[j].a
		}
		return found[i].b < found[j].b
	})
	return found
}

func (m *blockMatcher) matchedLength() int {
	n := 0
	for _, b := range m.blocks() {
		n += b.size
	}
	return n
}
