// Package patent defines the Patent aggregate and its owned collections as
// read from a patent data mart, plus the repository contract the entity
// store implements. The core never writes patents; ingestion is external.
package patent

import (
	"strings"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
)

// Party is an applicant or inventor attached to exactly one Patent.
type Party struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Classification is one IPC code on a Patent. A (patent, code) pair is
// unique.
type Classification struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Description is one section of the specification text.
type Description struct {
	SectionTitle string `json:"section_title,omitempty"`
	Text         string `json:"text"`
}

// Patent is the canonical unit: bibliographic data plus the applicants,
// inventors, classifications, claims and description sections it owns.
// ApplicationNumber uniquely identifies a Patent within a store.
type Patent struct {
	ApplicationNumber  string           `json:"application_number"`
	ApplicationDate    Date             `json:"application_date"`
	PublicationNumber  string           `json:"publication_number,omitempty"`
	PublicationDate    Date             `json:"publication_date"`
	RegistrationNumber string           `json:"registration_number,omitempty"`
	RegistrationDate   Date             `json:"registration_date"`
	Title              string           `json:"title"`
	Abstract           string           `json:"abstract,omitempty"`
	FamilyID           string           `json:"family_id,omitempty"`
	Status             string           `json:"status,omitempty"`
	Applicants         []Party          `json:"applicants"`
	Inventors          []Party          `json:"inventors"`
	Classifications    []Classification `json:"ipc_classifications"`
	Claims             ClaimSet         `json:"claims"`
	Descriptions       []Description    `json:"descriptions"`
}

// New returns a Patent with empty, non-nil owned collections so that JSON
// output carries [] instead of null.
func New(applicationNumber string) *Patent {
	return &Patent{
		ApplicationNumber: applicationNumber,
		Applicants:        []Party{},
		Inventors:         []Party{},
		Classifications:   []Classification{},
		Claims:            ClaimSet{},
		Descriptions:      []Description{},
	}
}

// AddClassification attaches code unless the patent already carries it
// (compared in normalized form). A blank description is filled from the
// IPC map.
func (p *Patent) AddClassification(code, description string) {
	norm := ipc.Normalize(code)
	if norm == "" {
		return
	}
	for _, c := range p.Classifications {
		if ipc.Normalize(c.Code) == norm {
			return
		}
	}
	if description == "" {
		description = ipc.Describe(norm)
	}
	p.Classifications = append(p.Classifications, Classification{Code: code, Description: description})
}

// ApplicantNames returns the applicant names in stored order.
func (p *Patent) ApplicantNames() []string {
	out := make([]string, 0, len(p.Applicants))
	for _, a := range p.Applicants {
		out = append(out, a.Name)
	}
	return out
}

// HasApplicant reports whether any applicant name contains substr,
// case-insensitively.
func (p *Patent) HasApplicant(substr string) bool {
	needle := strings.ToLower(substr)
	for _, a := range p.Applicants {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			return true
		}
	}
	return false
}

// Subclasses returns the distinct IPC subclasses of the patent in first-seen
// order. Unparseable codes map to ipc.Unclassified.
func (p *Patent) Subclasses() []string {
	seen := make(map[string]bool, len(p.Classifications))
	var out []string
	for _, c := range p.Classifications {
		key := ipc.Bucket(c.Code, ipc.LevelSubclass)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
