package analytics

import (
	"context"

	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// PatentLandscape aggregates every classification at level. A patent counts
// once per category it falls in.
func (s *serviceImpl) PatentLandscape(ctx context.Context, level ipc.Level) (*domain.LandscapeTree, error) {
	if !level.Valid() {
		return nil, errors.InvalidArguments("ipc_level must be 1, 2 or 3")
	}
	params := domain.Params{"ipc_level": int(level)}

	return cached(ctx, s, "patent_landscape", params, func(ctx context.Context) (*domain.LandscapeTree, error) {
		codes, err := s.source(ctx, sqladapter.RelClassifications, "c")
		if err != nil {
			return nil, err
		}
		rows, err := s.db.Run(ctx, sqladapter.Builder.
			Select("c.patent_key", "c.code").
			Distinct().
			From(codes).
			OrderBy("c.patent_key", "c.code"))
		if err != nil {
			return nil, err
		}
		idx, err := rows.Resolve("patent_key", "code")
		if err != nil {
			return nil, err
		}

		cells := make([]patentCode, 0, rows.Len())
		for i := 0; i < rows.Len(); i++ {
			cells = append(cells, patentCode{key: rows.Text(i, idx["patent_key"]), code: rows.Text(i, idx["code"])})
		}
		counts := s.rollup(cells, level).bucketCounts(true)

		out := &domain.LandscapeTree{Meta: s.meta(domain.KindLandscapeTree, params), Level: level}
		out.Landscape, out.Sections, out.Clusters = domain.BuildLandscape(counts, s.settings.LandscapeTopCategories)
		s.logger.Info("patent landscape computed",
			logging.Int("ipc_level", int(level)),
			logging.Int("categories", len(out.Landscape)),
			logging.Int("clusters", len(out.Clusters)))
		return out, nil
	})
}
