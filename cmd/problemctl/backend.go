package main

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/api/rpcapi"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/parser"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/query"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/refresh"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/source"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/proto"
)

// backend is the set of ProblemService calls the CLI needs. *rpcapi.Client
// satisfies it remotely, localBackend in-process.
type backend interface {
	Lookup(ctx context.Context, req proto.LookupRequest) (*proto.LookupResponse, error)
	Search(ctx context.Context, req proto.SearchRequest) (*proto.SearchResponse, error)
	Status(ctx context.Context) (*proto.StatusResponse, error)
	Companies(ctx context.Context) (*proto.CompaniesResponse, error)
	CompanyProblems(ctx context.Context, req proto.CompanyProblemsRequest) (*proto.CompanyProblemsResponse, error)
	Rebuild(ctx context.Context, trigger string) (*proto.RebuildResponse, error)
	Close() error
}

func dialRemote(ctx context.Context, addr string) (backend, error) {
	c, err := rpcapi.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return c, nil
}

// localBackend answers through the same service the RPC server registers,
// over an index built from a directory.
type localBackend struct {
	svc *rpcapi.Service
}

// cliSearch lets the CLI ask for larger result sets than the server default.
var cliSearch = config.SearchConfig{MaxResults: 1000, DefaultLimit: 20}

func buildLocal(ctx context.Context, dir string) (backend, error) {
	store := catalog.NewStore()
	refresher := refresh.New(source.NewDir(dir), parser.New(0), store)
	if _, err := refresher.Rebuild(ctx, "cli"); err != nil {
		return nil, fmt.Errorf("building index from %s: %w", dir, err)
	}
	return &localBackend{svc: rpcapi.NewService(query.New(store), refresher, cliSearch)}, nil
}

func (l *localBackend) Lookup(ctx context.Context, req proto.LookupRequest) (*proto.LookupResponse, error) {
	return l.svc.Lookup(ctx, &req)
}

func (l *localBackend) Search(ctx context.Context, req proto.SearchRequest) (*proto.SearchResponse, error) {
	return l.svc.Search(ctx, &req)
}

func (l *localBackend) Status(ctx context.Context) (*proto.StatusResponse, error) {
	return l.svc.Status(ctx, &proto.StatusRequest{})
}

func (l *localBackend) Companies(ctx context.Context) (*proto.CompaniesResponse, error) {
	return l.svc.Companies(ctx, &proto.CompaniesRequest{})
}

func (l *localBackend) CompanyProblems(ctx context.Context, req proto.CompanyProblemsRequest) (*proto.CompanyProblemsResponse, error) {
	return l.svc.CompanyProblems(ctx, &req)
}

func (l *localBackend) Rebuild(ctx context.Context, trigger string) (*proto.RebuildResponse, error) {
	return l.svc.Rebuild(ctx, &proto.RebuildRequest{Trigger: trigger})
}

func (l *localBackend) Close() error { return nil }
