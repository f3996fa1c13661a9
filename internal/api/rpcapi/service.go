// Package rpcapi exposes the query engine and rebuild control over the
// JSON-over-TCP RPC layer, and provides a typed client for it.
package rpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/query"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/refresh"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/rpc"
)

type Rebuilder interface {
	Rebuild(ctx context.Context, trigger string) (*refresh.Result, error)
}

// Service implements the ProblemService methods.
type Service struct {
	engine    *query.Engine
	rebuilder Rebuilder
	search    config.SearchConfig
	logger    *slog.Logger
}

// NewService builds a Service. rebuilder may be nil, in which case Rebuild
// reports the index as unavailable.
func NewService(engine *query.Engine, rebuilder Rebuilder, search config.SearchConfig) *Service {
	return &Service{
		engine:    engine,
		rebuilder: rebuilder,
		search:    search,
		logger:    slog.Default().With("component", "rpc-service"),
	}
}

// NewServer returns an rpc.Server with every ProblemService method registered
// and errors classified into proto codes.
func NewServer(svc *Service, timeout time.Duration) *rpc.Server {
	s := rpc.NewServer(rpc.WithErrorCoder(ErrorCode), rpc.WithRequestTimeout(timeout))
	svc.Register(s)
	return s
}

func (s *Service) Register(server *rpc.Server) {
	server.Register(proto.MethodLookup, decode(s.Lookup))
	server.Register(proto.MethodSearch, decode(s.Search))
	server.Register(proto.MethodStatus, decode(s.Status))
	server.Register(proto.MethodCompanies, decode(s.Companies))
	server.Register(proto.MethodCompanyProblems, decode(s.CompanyProblems))
	server.Register(proto.MethodRebuild, decode(s.Rebuild))
}

func decode[Req any, Resp any](fn func(context.Context, *Req) (*Resp, error)) rpc.HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		req := new(Req)
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, req); err != nil {
				return nil, fmt.Errorf("decoding params: %w", apperrors.ErrInvalidInput)
			}
		}
		return fn(ctx, req)
	}
}

func (s *Service) Lookup(ctx context.Context, req *proto.LookupRequest) (*proto.LookupResponse, error) {
	if req.Input == "" {
		return nil, fmt.Errorf("input is required: %w", apperrors.ErrInvalidInput)
	}
	var (
		view *query.ProblemView
		ok   bool
	)
	switch req.Mode {
	case "", proto.ModeResolve:
		view, ok = s.engine.Resolve(req.Input, req.Window)
	case proto.ModeIdentity:
		view, ok = s.engine.LookupByIdentity(req.Input, req.Window)
	case proto.ModeTitle:
		view, ok = s.engine.LookupByTitle(req.Input, req.Window)
	default:
		return nil, fmt.Errorf("unknown lookup mode %q: %w", req.Mode, apperrors.ErrInvalidInput)
	}
	if !ok {
		return nil, s.notFound(apperrors.ErrProblemNotFound, req.Input)
	}
	return &proto.LookupResponse{
		Problem: toProblem(view),
		Version: s.engine.Status().Version,
	}, nil
}

func (s *Service) Search(ctx context.Context, req *proto.SearchRequest) (*proto.SearchResponse, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query is required: %w", apperrors.ErrInvalidInput)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.search.DefaultLimit
	}
	if limit > s.search.MaxResults {
		limit = s.search.MaxResults
	}
	hits := s.engine.Search(req.Query, limit)
	resp := &proto.SearchResponse{
		Query:   req.Query,
		Results: make([]proto.SearchResult, 0, len(hits)),
		Version: s.engine.Status().Version,
	}
	for _, h := range hits {
		resp.Results = append(resp.Results, proto.SearchResult{
			Title:        h.Title,
			Key:          h.Key,
			CompanyCount: h.CompanyCount,
		})
	}
	return resp, nil
}

func (s *Service) Status(ctx context.Context, _ *proto.StatusRequest) (*proto.StatusResponse, error) {
	st := s.engine.Status()
	resp := &proto.StatusResponse{
		Ready:          st.Ready,
		Version:        st.Version,
		TotalProblems:  st.TotalProblems,
		TotalCompanies: st.TotalCompanies,
		Discarded:      st.Discarded,
	}
	if st.LastRebuiltAt != nil {
		resp.LastRebuiltAt = st.LastRebuiltAt.Unix()
	}
	return resp, nil
}

func (s *Service) Companies(ctx context.Context, _ *proto.CompaniesRequest) (*proto.CompaniesResponse, error) {
	list := s.engine.Companies()
	resp := &proto.CompaniesResponse{Companies: make([]proto.CompanySummary, 0, len(list))}
	for _, c := range list {
		resp.Companies = append(resp.Companies, proto.CompanySummary{Name: c.Name, ProblemCount: c.ProblemCount})
	}
	return resp, nil
}

func (s *Service) CompanyProblems(ctx context.Context, req *proto.CompanyProblemsRequest) (*proto.CompanyProblemsResponse, error) {
	problems, ok := s.engine.CompanyProblems(req.Company, req.Window, req.Limit)
	if !ok {
		return nil, s.notFound(apperrors.ErrCompanyNotFound, req.Company)
	}
	resp := &proto.CompanyProblemsResponse{
		Company:  req.Company,
		Window:   req.Window,
		Problems: make([]proto.CompanyProblem, 0, len(problems)),
	}
	for _, p := range problems {
		resp.Problems = append(resp.Problems, proto.CompanyProblem{
			Title:        p.Title,
			Key:          p.Key,
			Difficulty:   p.Difficulty,
			MaxFrequency: p.MaxFrequency,
			LastSeen:     string(p.LastSeen),
		})
	}
	return resp, nil
}

func (s *Service) Rebuild(ctx context.Context, req *proto.RebuildRequest) (*proto.RebuildResponse, error) {
	if s.rebuilder == nil {
		return nil, fmt.Errorf("rebuild not configured: %w", apperrors.ErrSourceUnavailable)
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = "rpc"
	}
	result, err := s.rebuilder.Rebuild(ctx, trigger)
	if err != nil {
		s.logger.Warn("rpc rebuild failed", "trigger", trigger, "error", err)
		return nil, err
	}
	return &proto.RebuildResponse{
		Version:    result.Version,
		Published:  result.Published,
		Coalesced:  result.Coalesced,
		Problems:   result.Problems,
		Companies:  result.Companies,
		Discarded:  result.Discarded,
		DurationMs: result.Duration.Milliseconds(),
	}, nil
}

// notFound distinguishes a miss against a live snapshot from a miss before
// the first successful build.
func (s *Service) notFound(sentinel error, input string) error {
	if !s.engine.Status().Ready {
		return fmt.Errorf("%q: %w", input, apperrors.ErrIndexNotReady)
	}
	return fmt.Errorf("%q: %w", input, sentinel)
}

func toProblem(v *query.ProblemView) proto.Problem {
	p := proto.Problem{
		Title:      v.Title,
		Key:        v.Key,
		Difficulty: v.Difficulty,
		Link:       v.Link,
		Window:     string(v.Window),
		Companies:  make([]proto.CompanyStat, 0, len(v.Companies)),
	}
	for _, c := range v.Companies {
		stat := proto.CompanyStat{
			Company:      c.Company,
			MaxFrequency: c.MaxFrequency,
			LastSeen:     string(c.LastSeen),
		}
		for _, w := range c.WindowsSeen {
			stat.WindowsSeen = append(stat.WindowsSeen, string(w))
		}
		p.Companies = append(p.Companies, stat)
	}
	return p
}

// ErrorCode classifies service errors into proto codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrProblemNotFound), errors.Is(err, apperrors.ErrCompanyNotFound):
		return proto.CodeNotFound
	case errors.Is(err, apperrors.ErrIndexNotReady):
		return proto.CodeNotReady
	case errors.Is(err, apperrors.ErrInvalidInput):
		return proto.CodeInvalid
	case errors.Is(err, apperrors.ErrRateLimited):
		return proto.CodeRateLimited
	case errors.Is(err, apperrors.ErrNoData),
		errors.Is(err, apperrors.ErrSourceUnavailable),
		errors.Is(err, apperrors.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return proto.CodeUnavailable
	default:
		return rpc.CodeInternal
	}
}
