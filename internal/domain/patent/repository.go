package patent

import "context"

// DefaultApplicantLimit bounds FindByApplicant when the caller passes no
// limit.
const DefaultApplicantLimit = 100

// ApplicantCount is one entry of an applicant ranking.
type ApplicantCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// YearCount is one bin of a yearly histogram.
type YearCount struct {
	Year  int   `json:"year"`
	Count int64 `json:"count"`
}

// Stats is the store-wide summary served by get_patent_stats.
type Stats struct {
	TotalPatents      int64            `json:"total_patents"`
	TotalApplicants   int64            `json:"total_applicants"`
	TotalInventors    int64            `json:"total_inventors"`
	TotalFamilies     *int64           `json:"total_families"`
	PatentsPerYear    []YearCount      `json:"patents_per_year"`
	TopApplicants     []ApplicantCount `json:"top_applicants"`
	AverageFamilySize *float64         `json:"average_family_size"`
}

// Repository is the typed read contract over a patent data mart. Every
// accessor returns fully hydrated entities; partial hydration is not
// exposed.
type Repository interface {
	// GetByApplicationNumber returns at most one Patent with its owned
	// collections loaded, or nil when none matches.
	GetByApplicationNumber(ctx context.Context, applicationNumber string) (*Patent, error)

	// FindByApplicant matches applicant names case-insensitively, by
	// substring when fuzzy is set and exactly otherwise. Results are ordered
	// by application number; limit <= 0 means DefaultApplicantLimit.
	FindByApplicant(ctx context.Context, name string, fuzzy bool, limit int) ([]*Patent, error)

	CountPatents(ctx context.Context) (int64, error)
	CountDistinctApplicants(ctx context.Context) (int64, error)
	CountDistinctInventors(ctx context.Context) (int64, error)

	// TopApplicants ranks applicants by distinct patent count, descending,
	// ties broken by name.
	TopApplicants(ctx context.Context, limit int) ([]ApplicantCount, error)

	// PatentsPerYear is a histogram keyed by the 4-digit year of
	// application_date, ascending. Patents without a date are not counted.
	PatentsPerYear(ctx context.Context) ([]YearCount, error)

	// Stats combines the counters above with family figures when the store
	// carries family ids.
	Stats(ctx context.Context, topApplicants int) (*Stats, error)
}
