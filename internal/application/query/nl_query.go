// Package query answers natural-language questions by translating them into
// read-only SQL through an external collaborator.
package query

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/database/sqladapter"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/nlsql"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

const (
	DefaultMaxResults = 100
	MaxResultsLimit   = 1000
	MaxQuestionLength = 2000
)

// NLQueryRequest is a question plus an optional result cap.
type NLQueryRequest struct {
	Question   string `json:"question"`
	MaxResults int    `json:"max_results,omitempty"`
}

// NLQueryResponse carries the generated SQL alongside its rows so callers can
// see what was run.
type NLQueryResponse struct {
	Question    string          `json:"question"`
	SQL         string          `json:"sql"`
	Explanation string          `json:"explanation,omitempty"`
	Columns     []string        `json:"columns"`
	Results     [][]interface{} `json:"results"`
	RecordCount int             `json:"record_count"`
	Truncated   bool            `json:"truncated"`
}

// Translator turns a question into SQL.
type Translator interface {
	Translate(ctx context.Context, req nlsql.Request) (*nlsql.Translation, error)
}

// NLQueryService answers natural-language questions.
type NLQueryService interface {
	Query(ctx context.Context, req *NLQueryRequest) (*NLQueryResponse, error)
}

type nlQueryServiceImpl struct {
	translator Translator
	db         *sqladapter.Adapter
	logger     logging.Logger
}

// NewNLQueryService wires the translator to the adapter whose read-only gate
// every generated statement passes through.
func NewNLQueryService(translator Translator, db *sqladapter.Adapter, logger logging.Logger) (NLQueryService, error) {
	if translator == nil {
		return nil, errors.Unavailable("natural language query is not configured")
	}
	if db == nil {
		return nil, errors.InvalidArguments("nl query service requires an Adapter")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &nlQueryServiceImpl{translator: translator, db: db, logger: logger.Named("nlquery")}, nil
}

func (s *nlQueryServiceImpl) Query(ctx context.Context, req *NLQueryRequest) (*NLQueryResponse, error) {
	if req == nil {
		return nil, errors.InvalidArguments("question is required")
	}
	question := strings.TrimSpace(req.Question)
	switch {
	case question == "":
		return nil, errors.InvalidArguments("question is required")
	case len(question) > MaxQuestionLength:
		return nil, errors.Newf(errors.ErrCodeInvalidArguments, "question exceeds %d characters", MaxQuestionLength)
	case checkPromptInjection(question):
		return nil, errors.InvalidArguments("question contains disallowed instructions; please rephrase it")
	}
	limit := req.MaxResults
	switch {
	case limit == 0:
		limit = DefaultMaxResults
	case limit < 0 || limit > MaxResultsLimit:
		return nil, errors.Newf(errors.ErrCodeInvalidArguments, "max_results must be between 1 and %d", MaxResultsLimit)
	}

	schema, err := s.db.Schema(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tr, err := s.translator.Translate(ctx, nlsql.Request{
		Question: question,
		Dialect:  schema.Dialect,
		Tables:   describeTables(schema),
	})
	if err != nil {
		s.logger.Warn("translation failed", logging.Err(err))
		return nil, err
	}

	// Generated SQL is untrusted and goes through the same gate as
	// caller-supplied SQL.
	rows, err := s.db.Passthrough(ctx, tr.SQL)
	if err != nil {
		s.logger.Info("generated query rejected",
			logging.String("sql", tr.SQL),
			logging.String("kind", errors.KindOf(err)))
		return nil, err
	}

	resp := &NLQueryResponse{
		Question:    question,
		SQL:         tr.SQL,
		Explanation: tr.Explanation,
		Columns:     rows.Columns,
		Results:     rows.Data,
	}
	if len(resp.Results) > limit {
		resp.Results = resp.Results[:limit]
		resp.Truncated = true
	}
	resp.RecordCount = len(resp.Results)

	s.logger.Info("question answered",
		logging.Int("rows", resp.RecordCount),
		logging.Bool("truncated", resp.Truncated),
		logging.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// describeTables renders "table(col, col, ...)" entries for the translator.
func describeTables(s *sqladapter.Schema) []string {
	names := s.TableNames()
	out := make([]string, 0, len(names))
	for _, name := range names {
		cols := make([]string, 0, len(s.Tables[name]))
		for c, ok := range s.Tables[name] {
			if ok {
				cols = append(cols, c)
			}
		}
		sort.Strings(cols)
		out = append(out, name+"("+strings.Join(cols, ", ")+")")
	}
	return out
}

func checkPromptInjection(question string) bool {
	lower := strings.ToLower(question)
	for _, pattern := range []string{
		"ignore previous",
		"system prompt",
		"forget instructions",
		"you are now",
		"drop table",
		"delete from",
	} {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
