package patent

import (
	"regexp"
	"sort"
	"strconv"
)

// ClaimType defines whether a claim is independent or dependent.
type ClaimType string

const (
	ClaimTypeIndependent ClaimType = "independent"
	ClaimTypeDependent   ClaimType = "dependent"
)

// Claim is one numbered claim. Numbers start at 1.
type Claim struct {
	Number    int       `json:"claim_number"`
	Text      string    `json:"text"`
	Type      ClaimType `json:"type"`
	DependsOn []int     `json:"depends_on,omitempty"`
}

// claimRef matches back-references in English and Japanese claim text:
// "claim 1", "claims 1 to 3", "請求項１", "請求項1～3".
var claimRef = regexp.MustCompile(`(?i)(?:claims?\s+|請求項\s*)(\d+)(?:\s*(?:to|-|～|〜|から)\s*(\d+))?`)

// NewClaim builds a claim and infers its dependencies from back-references
// to lower-numbered claims in the text.
func NewClaim(number int, text string) Claim {
	c := Claim{Number: number, Text: text, Type: ClaimTypeIndependent}
	seen := map[int]bool{}
	for _, m := range claimRef.FindAllStringSubmatch(toHalfWidthDigits(text), -1) {
		from, _ := strconv.Atoi(m[1])
		to := from
		if m[2] != "" {
			to, _ = strconv.Atoi(m[2])
		}
		for n := from; n <= to && n < number; n++ {
			if n > 0 && !seen[n] {
				seen[n] = true
				c.DependsOn = append(c.DependsOn, n)
			}
		}
	}
	if len(c.DependsOn) > 0 {
		sort.Ints(c.DependsOn)
		c.Type = ClaimTypeDependent
	}
	return c
}

func toHalfWidthDigits(s string) string {
	out := []rune(s)
	for i, r := range out {
		if r >= '０' && r <= '９' {
			out[i] = '0' + (r - '０')
		}
	}
	return string(out)
}

// ClaimSet is the ordered claims of a single patent.
type ClaimSet []Claim

// Sort orders the set by claim number.
func (cs ClaimSet) Sort() {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Number < cs[j].Number })
}

// IndependentClaims returns all independent claims in the set.
func (cs ClaimSet) IndependentClaims() []Claim {
	var independent []Claim
	for _, c := range cs {
		if c.Type == ClaimTypeIndependent {
			independent = append(independent, c)
		}
	}
	return independent
}

// DependentClaimsOf returns claims that directly depend on the given claim.
func (cs ClaimSet) DependentClaimsOf(number int) []Claim {
	var dependents []Claim
	for _, c := range cs {
		for _, dep := range c.DependsOn {
			if dep == number {
				dependents = append(dependents, c)
				break
			}
		}
	}
	return dependents
}

// FindByNumber locates a claim by its number.
func (cs ClaimSet) FindByNumber(number int) (*Claim, bool) {
	for i := range cs {
		if cs[i].Number == number {
			return &cs[i], true
		}
	}
	return nil, false
}
