// Package reporting composes report models from analytics results and turns
// them into stored artifacts through pluggable renderers.
package reporting

import (
	"context"
	"path"
	"time"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/report"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/storage"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

// Renderer encodes a report in one format.
type Renderer interface {
	Format() report.Format
	Render(ctx context.Context, r *report.Report) ([]byte, error)
}

// GenerateRequest asks for a composed, rendered and stored report.
type GenerateRequest struct {
	ComposeRequest
	Format report.Format
}

// Artifact is the stored outcome of Generate.
type Artifact struct {
	ReportID    string        `json:"report_id"`
	Kind        report.Kind   `json:"kind"`
	Format      report.Format `json:"format"`
	Location    string        `json:"location"`
	URL         string        `json:"url,omitempty"`
	ContentType string        `json:"content_type"`
	Size        int64         `json:"size"`
}

// Service is the report surface used by the MCP tools and the CLI.
type Service interface {
	// Compose builds the report model without rendering it.
	Compose(ctx context.Context, req ComposeRequest) (*report.Report, error)
	// Render encodes r in format.
	Render(ctx context.Context, r *report.Report, format report.Format) ([]byte, error)
	// Generate composes, renders and stores a report.
	Generate(ctx context.Context, req GenerateRequest) (*Artifact, error)
	// Formats lists the formats a renderer is registered for.
	Formats() []report.Format
}

// ServiceConfig holds the dependencies of the report service. Store may be
// nil, in which case Generate fails with Unavailable.
type ServiceConfig struct {
	Composer  *Composer
	Renderers []Renderer
	Store     storage.Store
	Logger    logging.Logger
	Metrics   *prometheus.AppMetrics
}

type serviceImpl struct {
	composer  *Composer
	renderers map[report.Format]Renderer
	order     []report.Format
	store     storage.Store
	logger    logging.Logger
	metrics   *prometheus.AppMetrics
}

// NewService returns the report service.
func NewService(cfg ServiceConfig) (Service, error) {
	if cfg.Composer == nil {
		return nil, errors.InvalidArguments("reporting: composer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	s := &serviceImpl{
		composer:  cfg.Composer,
		renderers: make(map[report.Format]Renderer, len(cfg.Renderers)),
		store:     cfg.Store,
		logger:    cfg.Logger.Named("reporting"),
		metrics:   cfg.Metrics,
	}
	for _, r := range cfg.Renderers {
		if _, dup := s.renderers[r.Format()]; !dup {
			s.order = append(s.order, r.Format())
		}
		s.renderers[r.Format()] = r
	}
	return s, nil
}

func (s *serviceImpl) Compose(ctx context.Context, req ComposeRequest) (*report.Report, error) {
	return s.composer.Compose(ctx, req)
}

func (s *serviceImpl) Formats() []report.Format {
	return append([]report.Format(nil), s.order...)
}

func (s *serviceImpl) Render(ctx context.Context, r *report.Report, format report.Format) (out []byte, err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordReport(string(format), kindOf(err))
		}
		if err != nil {
			s.logger.Warn("report rendering failed", logging.String("format", string(format)), logging.Err(err))
			return
		}
		s.logger.Debug("report rendered",
			logging.String("format", string(format)),
			logging.Int("bytes", len(out)),
			logging.Duration("duration", time.Since(start)))
	}()

	if r == nil {
		return nil, errors.InvalidArguments("report is required")
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidArguments, "no renderer for format %q", format)
	}
	return renderer.Render(ctx, r)
}

func (s *serviceImpl) Generate(ctx context.Context, req GenerateRequest) (*Artifact, error) {
	if s.store == nil {
		return nil, errors.Unavailable("no artifact store is configured")
	}
	if _, ok := s.renderers[req.Format]; !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidArguments, "no renderer for format %q", req.Format)
	}

	r, err := s.composer.Compose(ctx, req.ComposeRequest)
	if err != nil {
		return nil, err
	}
	data, err := s.Render(ctx, r, req.Format)
	if err != nil {
		return nil, err
	}
	obj, err := s.store.Put(ctx, ArtifactKey(r, req.Format), data, req.Format.ContentType())
	if err != nil {
		return nil, err
	}

	s.logger.Info("report generated",
		logging.String("report_id", r.ID),
		logging.String("format", string(req.Format)),
		logging.String("location", obj.Location))
	return &Artifact{
		ReportID:    r.ID,
		Kind:        r.Kind,
		Format:      req.Format,
		Location:    obj.Location,
		URL:         obj.URL,
		ContentType: req.Format.ContentType(),
		Size:        obj.Size,
	}, nil
}

// ArtifactKey is "<kind>/<yyyy-mm-dd>/<report id><ext>".
func ArtifactKey(r *report.Report, format report.Format) string {
	return path.Join(string(r.Kind), r.GeneratedAt.UTC().Format("2006-01-02"), r.ID+format.Extension())
}

func kindOf(err error) string {
	if err == nil {
		return ""
	}
	return errors.KindOf(err)
}
