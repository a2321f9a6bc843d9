// Package analytics provides the patent analytics engines: trend, competitive,
// landscape and assessment operations composed over the SQL adapter.
package analytics

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/turtacn/KeyIP-Analytics/internal/config"
	domain "github.com/turtacn/KeyIP-Analytics/internal/domain/analytics"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/ipc"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/patent"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Service is the analytics engine surface used by the MCP dispatcher, the
// HTTP adapter and the CLI. Every operation is bound to one database.
type Service interface {
	// TechnologyTrends counts patents per application year and IPC subclass
	// over the last years years, keeping the topN subclasses.
	TechnologyTrends(ctx context.Context, years, topN int) (*domain.YearlyTrend, error)
	// ApplicantTrends counts an applicant's patents per year and IPC section.
	ApplicantTrends(ctx context.Context, applicant string, window YearWindow) (*domain.YearlyTrend, error)
	// ClassificationTrends ranks applicants per year within an IPC prefix.
	ClassificationTrends(ctx context.Context, prefix string, window YearWindow) (*domain.ApplicantRanking, error)
	ApplicantCompetition(ctx context.Context, topN int) (*domain.OverlapMatrix, error)
	CompareWithCompetitors(ctx context.Context, applicant string, k int) (*domain.CompetitorComparison, error)
	PatentLandscape(ctx context.Context, level ipc.Level) (*domain.LandscapeTree, error)
	Assessment(ctx context.Context, applicant string) (*domain.AssessmentBreakdown, error)
	ApplicantSummary(ctx context.Context, applicant string) (*domain.ApplicantSummary, error)
	TechnicalFields(ctx context.Context, applicant string) (*domain.TechnicalFields, error)
	Stats(ctx context.Context, topApplicants int) (*patent.Stats, error)
	// Database names the database the service reads.
	Database() string
}

// YearWindow bounds an operation to application years; a zero bound is
// open.
type YearWindow struct {
	Start int
	End   int
}

func (w YearWindow) params(p domain.Params) domain.Params {
	if w.Start > 0 {
		p["start_year"] = w.Start
	}
	if w.End > 0 {
		p["end_year"] = w.End
	}
	return p
}

func (w YearWindow) validate() error {
	if w.Start < 0 || w.End < 0 {
		return errors.InvalidArguments("start_year and end_year must be positive")
	}
	if w.Start > 0 && w.End > 0 && w.End < w.Start {
		return errors.InvalidArguments("end_year must not precede start_year")
	}
	return nil
}

// ResultCache memoizes analytic results. GetOrSet fills dest from the cache
// or from loader, storing what loader returns. Cancelling ctx ends the wait
// of this caller only; a load shared with other callers keeps running.
type ResultCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
}

// ServiceConfig holds the dependencies of the analytics service.
type ServiceConfig struct {
	Adapter    *sqladapter.Adapter
	Repository patent.Repository
	Settings   config.AnalyticsConfig
	Logger     logging.Logger
	Cache      ResultCache
	CacheTTL   time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type serviceImpl struct {
	db       *sqladapter.Adapter
	repo     patent.Repository
	settings config.AnalyticsConfig
	logger   logging.Logger
	cache    ResultCache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewService constructs the analytics service.
func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.Adapter == nil {
		return nil, errors.InvalidArguments("analytics service requires an Adapter")
	}
	if cfg.Repository == nil {
		return nil, errors.InvalidArguments("analytics service requires a Repository")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = config.DefaultCacheTTL
	}
	settings := cfg.Settings
	if settings.TolerancePoints == 0 {
		settings.TolerancePoints = config.DefaultTolerancePoints
	}
	if settings.LandscapeTopCategories < 1 {
		settings.LandscapeTopCategories = config.DefaultLandscapeTopCategories
	}
	if settings.CompetitorSeedSubclasses < 1 {
		settings.CompetitorSeedSubclasses = config.DefaultCompetitorSeedSubclasses
	}
	if settings.TopIPCPerApplicant < 1 {
		settings.TopIPCPerApplicant = config.DefaultTopIPCPerApplicant
	}
	if settings.TopApplicantsPerYear < 1 {
		settings.TopApplicantsPerYear = config.DefaultTopApplicantsPerYear
	}

	return &serviceImpl{
		db:       cfg.Adapter,
		repo:     cfg.Repository,
		settings: settings,
		logger:   cfg.Logger.Named("analytics").With(logging.String("database", cfg.Adapter.Name())),
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		now:      cfg.Clock,
	}, nil
}

func (s *serviceImpl) Database() string { return s.db.Name() }

func (s *serviceImpl) meta(kind domain.Kind, params domain.Params) domain.Meta {
	return domain.NewMeta(kind, s.db.Name(), params, s.now())
}

// source returns the aliased relation subquery or BadQuery when the schema
// lacks it.
func (s *serviceImpl) source(ctx context.Context, rel sqladapter.Relation, alias string) (string, error) {
	src, ok, err := s.db.Relation(ctx, rel, alias)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.BadQuery("database schema does not provide " + string(rel))
	}
	return src, nil
}

// checkpoint aborts between SQL calls once ctx is done, so no partial result
// escapes.
func checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.FromContext(err)
	}
	return nil
}

// cached runs compute through the result cache when one is configured.
func cached[T any](ctx context.Context, s *serviceImpl, op string, params domain.Params, compute func(context.Context) (*T, error)) (*T, error) {
	if s.cache == nil {
		return compute(ctx)
	}
	key, err := cacheKey(s.db.Name(), op, params)
	if err != nil {
		return compute(ctx)
	}

	var out T
	err = s.cache.GetOrSet(ctx, key, &out, s.cacheTTL, func(ctx context.Context) (interface{}, error) {
		return compute(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// cacheKey is analytics:<db>:<op>:<sha1 of the JSON params>. encoding/json
// sorts map keys, so equal params give equal keys.
func cacheKey(db, op string, params domain.Params) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(raw)
	return "analytics:" + db + ":" + op + ":" + hex.EncodeToString(sum[:]), nil
}
