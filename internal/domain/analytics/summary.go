package analytics

import (
	"sort"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
)

// IPCShare is an IPC key with its share of the applicant's classified
// patents.
type IPCShare struct {
	IPCCount
	Percentage float64 `json:"percentage"`
}

// DomainShare is one technical domain rollup.
type DomainShare struct {
	Domain     string   `json:"domain"`
	Count      int64    `json:"count"`
	Percentage float64  `json:"percentage"`
	Codes      []string `json:"codes"`
}

// TechnicalFields is an applicant's IPC distribution with its technical
// domain rollup.
type TechnicalFields struct {
	Meta
	Applicant    string        `json:"applicant"`
	Total        int64         `json:"total"`
	Distribution []IPCShare    `json:"distribution"`
	Domains      []DomainShare `json:"technical_domains"`
	// Unmapped lists subclasses no technical domain claims.
	Unmapped []string `json:"unmapped_codes"`
}

// BuildTechnicalFields derives shares from per-code counts. codes are the
// full classification codes of the applicant with their patent counts;
// distribution is rolled up at subclass level.
func BuildTechnicalFields(codes map[string]int64) (dist []IPCShare, domains []DomainShare, unmapped []string, total int64) {
	bySubclass := map[string]int64{}
	byDomain := map[string]*DomainShare{}
	unmappedSet := Set{}

	for code, n := range codes {
		sub := ipc.Bucket(code, ipc.LevelSubclass)
		bySubclass[sub] += n
		total += n
		if name, ok := ipc.DomainOf(code); ok {
			d, ok := byDomain[name]
			if !ok {
				d = &DomainShare{Domain: name}
				byDomain[name] = d
			}
			d.Count += n
			d.Codes = append(d.Codes, ipc.Normalize(code))
		} else {
			unmappedSet[sub] = struct{}{}
		}
	}

	dist = make([]IPCShare, 0, len(bySubclass))
	for sub, n := range bySubclass {
		dist = append(dist, IPCShare{
			IPCCount:   IPCCount{Code: sub, Description: ipc.Describe(sub), Count: n},
			Percentage: share(n, total),
		})
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].Code < dist[j].Code
	})

	domains = make([]DomainShare, 0, len(byDomain))
	for _, d := range byDomain {
		sort.Strings(d.Codes)
		d.Codes = dedupSorted(d.Codes)
		d.Percentage = share(d.Count, total)
		domains = append(domains, *d)
	}
	sort.Slice(domains, func(i, j int) bool {
		if domains[i].Count != domains[j].Count {
			return domains[i].Count > domains[j].Count
		}
		return domains[i].Domain < domains[j].Domain
	})

	unmapped = Set(unmappedSet).Sorted()
	return dist, domains, unmapped, total
}

func share(n, total int64) float64 {
	if p := Percent(n, total); p != nil {
		return *p
	}
	return 0
}

func dedupSorted(s []string) []string {
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}

// ApplicantSummary is the one-stop profile of an applicant. An applicant
// with zero patents yields a summary with empty tables, not an error.
type ApplicantSummary struct {
	Meta
	Applicant          string               `json:"applicant"`
	MatchedNames       []string             `json:"matched_names"`
	TotalPatents       int64                `json:"total_patents"`
	FirstFilingYear    *int                 `json:"first_filing_year"`
	LatestFilingYear   *int                 `json:"latest_filing_year"`
	ApplicationHistory []patent.YearCount   `json:"application_history"`
	TopIPC             []IPCShare           `json:"top_ipc"`
	Trend              Derivations          `json:"trend"`
	Assessment         *AssessmentBreakdown `json:"assessment"`
}
