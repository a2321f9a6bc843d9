package repositories

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
)

// hydrated holds the patents of one result set keyed by their patent_key
// text, plus the raw key cells for binding.
type hydrated struct {
	order []*patent.Patent
	byKey map[string]*patent.Patent
	keys  []interface{}
}

// hydrate maps patent rows to entities and eager-loads every owned
// collection. Relations the physical schema lacks leave their collection
// empty.
func (r *PatentRepository) hydrate(ctx context.Context, rows *sqladapter.Rows) ([]*patent.Patent, error) {
	idx, err := rows.Resolve(
		"patent_key", "application_number", "application_date",
		"publication_number", "publication_date", "registration_number",
		"registration_date", "title", "abstract", "family_id",
	)
	if err != nil {
		return nil, err
	}

	h := hydrated{byKey: make(map[string]*patent.Patent, rows.Len())}
	for i := 0; i < rows.Len(); i++ {
		key := rows.Text(i, idx["patent_key"])
		if _, dup := h.byKey[key]; dup {
			continue
		}
		p := patent.New(rows.Text(i, idx["application_number"]))
		p.ApplicationDate = patent.ParseDate(rows.Text(i, idx["application_date"]))
		p.PublicationNumber = rows.Text(i, idx["publication_number"])
		p.PublicationDate = patent.ParseDate(rows.Text(i, idx["publication_date"]))
		p.RegistrationNumber = rows.Text(i, idx["registration_number"])
		p.RegistrationDate = patent.ParseDate(rows.Text(i, idx["registration_date"]))
		p.Title = rows.Text(i, idx["title"])
		p.Abstract = rows.Text(i, idx["abstract"])
		p.FamilyID = rows.Text(i, idx["family_id"])

		h.order = append(h.order, p)
		h.byKey[key] = p
		h.keys = append(h.keys, rows.Data[i][idx["patent_key"]])
	}
	if len(h.order) == 0 {
		return []*patent.Patent{}, nil
	}

	loaders := []func(context.Context, *hydrated) error{
		r.loadApplicants,
		r.loadInventors,
		r.loadClassifications,
		r.loadClaims,
		r.loadDescriptions,
		r.loadStatus,
	}
	for _, load := range loaders {
		if err := load(ctx, &h); err != nil {
			return nil, err
		}
	}
	return h.order, nil
}

// owned runs cols over rel restricted to the hydrated keys. ok is false when
// the relation is not available.
func (r *PatentRepository) owned(ctx context.Context, h *hydrated, rel sqladapter.Relation, orderBy []string, cols ...string) (*sqladapter.Rows, sqladapter.Index, bool, error) {
	src, ok, err := r.db.Relation(ctx, rel, "o")
	if err != nil || !ok {
		return nil, nil, false, err
	}
	selected := append([]string{"o.patent_key"}, cols...)
	rows, err := r.db.Run(ctx, sqladapter.Builder.
		Select(selected...).
		From(src).
		Where(sq.Eq{"o.patent_key": h.keys}).
		OrderBy(append([]string{"o.patent_key"}, orderBy...)...))
	if err != nil {
		return nil, nil, false, err
	}
	names := make([]string, len(selected))
	for i, c := range selected {
		names[i] = c[len("o."):]
	}
	idx, err := rows.Resolve(names...)
	if err != nil {
		return nil, nil, false, err
	}
	return rows, idx, true, nil
}

func (r *PatentRepository) loadApplicants(ctx context.Context, h *hydrated) error {
	return r.loadParties(ctx, h, sqladapter.RelApplicants, func(p *patent.Patent, party patent.Party) {
		p.Applicants = append(p.Applicants, party)
	})
}

func (r *PatentRepository) loadInventors(ctx context.Context, h *hydrated) error {
	return r.loadParties(ctx, h, sqladapter.RelInventors, func(p *patent.Patent, party patent.Party) {
		p.Inventors = append(p.Inventors, party)
	})
}

func (r *PatentRepository) loadParties(ctx context.Context, h *hydrated, rel sqladapter.Relation, add func(*patent.Patent, patent.Party)) error {
	rows, idx, ok, err := r.owned(ctx, h, rel, []string{"o.name"}, "o.name", "o.address")
	if err != nil || !ok {
		return err
	}
	for i := 0; i < rows.Len(); i++ {
		p := h.byKey[rows.Text(i, idx["patent_key"])]
		name := rows.Text(i, idx["name"])
		if p == nil || name == "" {
			continue
		}
		add(p, patent.Party{Name: name, Address: rows.Text(i, idx["address"])})
	}
	return nil
}

func (r *PatentRepository) loadClassifications(ctx context.Context, h *hydrated) error {
	rows, idx, ok, err := r.owned(ctx, h, sqladapter.RelClassifications, []string{"o.code"}, "o.code", "o.description")
	if err != nil || !ok {
		return err
	}
	for i := 0; i < rows.Len(); i++ {
		if p := h.byKey[rows.Text(i, idx["patent_key"])]; p != nil {
			p.AddClassification(rows.Text(i, idx["code"]), rows.Text(i, idx["description"]))
		}
	}
	return nil
}

func (r *PatentRepository) loadClaims(ctx context.Context, h *hydrated) error {
	rows, idx, ok, err := r.owned(ctx, h, sqladapter.RelClaims, []string{"o.claim_number"}, "o.claim_number", "o.text")
	if err != nil || !ok {
		return err
	}
	for i := 0; i < rows.Len(); i++ {
		if p := h.byKey[rows.Text(i, idx["patent_key"])]; p != nil {
			p.Claims = append(p.Claims, patent.NewClaim(int(rows.Int(i, idx["claim_number"])), rows.Text(i, idx["text"])))
		}
	}
	return nil
}

func (r *PatentRepository) loadDescriptions(ctx context.Context, h *hydrated) error {
	rows, idx, ok, err := r.owned(ctx, h, sqladapter.RelDescriptions, []string{"o.seq"}, "o.section_title", "o.text")
	if err != nil || !ok {
		return err
	}
	for i := 0; i < rows.Len(); i++ {
		if p := h.byKey[rows.Text(i, idx["patent_key"])]; p != nil {
			p.Descriptions = append(p.Descriptions, patent.Description{
				SectionTitle: rows.Text(i, idx["section_title"]),
				Text:         rows.Text(i, idx["text"]),
			})
		}
	}
	return nil
}

func (r *PatentRepository) loadStatus(ctx context.Context, h *hydrated) error {
	rows, idx, ok, err := r.owned(ctx, h, sqladapter.RelStatus, nil, "o.status")
	if err != nil || !ok {
		return err
	}
	for i := 0; i < rows.Len(); i++ {
		if p := h.byKey[rows.Text(i, idx["patent_key"])]; p != nil {
			p.Status = rows.Text(i, idx["status"])
		}
	}
	return nil
}
