package menu

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// MatchTier identifies which strategy resolved a name.
type MatchTier int

const (
	TierNone MatchTier = iota
	TierNormalizedExact
	TierRawExact
	TierSubstring
	TierToken
)

func (t MatchTier) String() string {
	switch t {
	case TierNormalizedExact:
		return "normalized_exact"
	case TierRawExact:
		return "raw_exact"
	case TierSubstring:
		return "substring"
	case TierToken:
		return "token_similarity"
	default:
		return "none"
	}
}

// Match is the result of resolving a free-text item name against the catalog.
// Partial and Similarity are only meaningful for the substring and token
// tiers; exact hits are authoritative and carry neither.
type Match struct {
	Found      bool
	MenuItemID string
	Name       string // canonical catalog name
	Category   string
	Price      decimal.Decimal
	Tier       MatchTier
	Partial    bool
	Similarity float64
}

const (
	// substringScore is the fixed similarity assigned to containment matches.
	substringScore = 0.95
	// tokenAcceptScore is the minimum token-similarity score accepted.
	tokenAcceptScore = 0.65
	// partialTokenCredit is the credit for a near-match between two tokens.
	partialTokenCredit = 0.5
	// partialTokenRatio is the minimum length ratio between two tokens for a
	// substring relation to count as a near-match.
	partialTokenRatio = 0.70
	// scoreTieWindow is the score difference under which two candidates are
	// considered tied and the shorter catalog key wins.
	scoreTieWindow = 0.01
)

// Matcher resolves requested item names to catalog entries using a layered
// strategy: normalized exact, raw exact, substring containment, then token
// similarity. The first tier that yields a candidate wins.
type Matcher struct {
	catalog *Catalog
}

// NewMatcher creates a Matcher over an immutable catalog.
func NewMatcher(catalog *Catalog) *Matcher {
	return &Matcher{catalog: catalog}
}

// Resolve finds the best catalog entry for name. A zero-value Match with
// Found=false means no tier produced an acceptable candidate; that is a
// reportable condition, not an error.
func (m *Matcher) Resolve(name string) Match {
	if strings.TrimSpace(name) == "" {
		return Match{}
	}

	normalized := Normalize(name)

	// Tier 1: normalized exact.
	if item, ok := m.catalog.Lookup(normalized); ok {
		return exactMatch(item, TierNormalizedExact)
	}

	// Tier 2: raw exact (lower/trim only, no substitution or stripping).
	if item, ok := m.catalog.Lookup(strings.ToLower(strings.TrimSpace(name))); ok {
		return exactMatch(item, TierRawExact)
	}

	// Tier 3: substring containment against every catalog key.
	if match, ok := m.substringMatch(normalized); ok {
		return match
	}

	// Tier 4: token similarity against catalog original names.
	if match, ok := m.tokenMatch(name); ok {
		return match
	}

	return Match{}
}

func exactMatch(item *Item, tier MatchTier) Match {
	return Match{
		Found:      true,
		MenuItemID: item.ID,
		Name:       item.Name,
		Category:   item.Category,
		Price:      item.Price,
		Tier:       tier,
		Similarity: 1,
	}
}

// candidate is a scored index entry from a fuzzy tier.
type candidate struct {
	key   string
	item  *Item
	score float64
}

// rank orders candidates by score descending; candidates whose scores
// differ by less than scoreTieWindow are tied and the shorter (more
// specific) key wins. Key text is the final tie-break so map iteration
// order never leaks into results.
func rank(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool {
		di := cands[i].score - cands[j].score
		if di > scoreTieWindow || di < -scoreTieWindow {
			return di > 0
		}
		if len(cands[i].key) != len(cands[j].key) {
			return len(cands[i].key) < len(cands[j].key)
		}
		return cands[i].key < cands[j].key
	})
}

func (m *Matcher) substringMatch(normalized string) (Match, bool) {
	var cands []candidate
	for key, item := range m.catalog.index {
		if strings.Contains(key, normalized) || strings.Contains(normalized, key) {
			cands = append(cands, candidate{key: key, item: item, score: substringScore})
		}
	}
	if len(cands) == 0 {
		return Match{}, false
	}
	rank(cands)
	best := cands[0]
	return Match{
		Found:      true,
		MenuItemID: best.item.ID,
		Name:       best.item.Name,
		Category:   best.item.Category,
		Price:      best.item.Price,
		Tier:       TierSubstring,
		Partial:    true,
		Similarity: best.score,
	}, true
}

func (m *Matcher) tokenMatch(name string) (Match, bool) {
	queryTokens := tokenizeName(name)
	if len(queryTokens) == 0 {
		return Match{}, false
	}

	var cands []candidate
	for key, item := range m.catalog.index {
		score := tokenSimilarity(queryTokens, tokenizeName(item.Name))
		if score >= tokenAcceptScore {
			cands = append(cands, candidate{key: key, item: item, score: score})
		}
	}
	if len(cands) == 0 {
		return Match{}, false
	}
	rank(cands)
	best := cands[0]
	return Match{
		Found:      true,
		MenuItemID: best.item.ID,
		Name:       best.item.Name,
		Category:   best.item.Category,
		Price:      best.item.Price,
		Tier:       TierToken,
		Partial:    true,
		Similarity: best.score,
	}, true
}

// tokenizeName splits a name into lower-cased tokens on whitespace,
// hyphens, and underscores.
func tokenizeName(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '_'
	})
}

// tokenSimilarity scores how well the candidate's tokens cover the query's.
// An exact token match earns full credit; a substring relation between two
// sufficiently similar-length tokens earns half credit. The score is the
// earned credit over the query token count.
func tokenSimilarity(queryTokens, candTokens []string) float64 {
	credit := 0.0
	for _, qt := range queryTokens {
		best := 0.0
		for _, ct := range candTokens {
			if qt == ct {
				best = 1
				break
			}
			if len(qt) > 2 && tokensNearMatch(qt, ct) {
				best = partialTokenCredit
			}
		}
		credit += best
	}
	return credit / float64(len(queryTokens))
}

// tokensNearMatch reports whether one token contains the other and their
// lengths are within partialTokenRatio of each other.
func tokensNearMatch(a, b string) bool {
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return false
	}
	shorter, longer := len(a), len(b)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if longer == 0 {
		return false
	}
	return float64(shorter)/float64(longer) >= partialTokenRatio
}
