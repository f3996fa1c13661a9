package rpcapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/query"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/recency"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/internal/refresh"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/proto"
)

type stubRebuilder struct {
	err error
}

func (s stubRebuilder) Rebuild(_ context.Context, trigger string) (*refresh.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &refresh.Result{Version: 7, Trigger: trigger, Published: true, Problems: 2}, nil
}

func serve(t *testing.T, build bool, rebuilder Rebuilder) *Client {
	t.Helper()
	store := catalog.NewStore()
	if build {
		snap, err := catalog.Build(catalog.Dataset{
			"Acme": {recency.ThirtyDays: {{Title: "Two Sum", Frequency: 5}, {Title: "LRU Cache", Frequency: 1}}},
			"Beta": {recency.NinetyDays: {{Title: "two   sum", Frequency: 2}}},
		}, 1)
		if err != nil {
			t.Fatal(err)
		}
		store.Publish(snap)
	}
	svc := NewService(query.New(store), rebuilder, config.SearchConfig{MaxResults: 10, DefaultLimit: 5})
	server := NewServer(svc, time.Second)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go server.ServeListener(ln)
	t.Cleanup(server.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLookupOverRPC(t *testing.T) {
	c := serve(t, true, nil)
	ctx := context.Background()

	resp, err := c.Lookup(ctx, proto.LookupRequest{Input: "Two Sum"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if resp.Problem.Key != "two-sum" || len(resp.Problem.Companies) != 2 || resp.Version != 1 {
		t.Errorf("unexpected response %+v", resp)
	}

	resp, err = c.Lookup(ctx, proto.LookupRequest{Input: "two-sum", Mode: proto.ModeIdentity, Window: "30"})
	if err != nil {
		t.Fatalf("windowed Lookup: %v", err)
	}
	if len(resp.Problem.Companies) != 1 || resp.Problem.Companies[0].Company != "Acme" {
		t.Errorf("expected Acme only, got %+v", resp.Problem.Companies)
	}
	if resp.Problem.Window != string(recency.ThirtyDays) {
		t.Errorf("window = %q", resp.Problem.Window)
	}

	_, err = c.Lookup(ctx, proto.LookupRequest{Input: "three sum"})
	if !errors.Is(err, apperrors.ErrProblemNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	_, err = c.Lookup(ctx, proto.LookupRequest{Input: "x", Mode: "fuzzy"})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestLookupBeforeFirstBuild(t *testing.T) {
	c := serve(t, false, nil)
	_, err := c.Lookup(context.Background(), proto.LookupRequest{Input: "two-sum"})
	if !errors.Is(err, apperrors.ErrIndexNotReady) {
		t.Errorf("expected not ready, got %v", err)
	}
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Ready || st.Version != 0 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestSearchAndCompaniesOverRPC(t *testing.T) {
	c := serve(t, true, nil)
	ctx := context.Background()

	resp, err := c.Search(ctx, proto.SearchRequest{Query: "sum", Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].CompanyCount != 2 {
		t.Errorf("unexpected results %+v", resp.Results)
	}

	_, err = c.Search(ctx, proto.SearchRequest{})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected invalid input for empty query, got %v", err)
	}

	companies, err := c.Companies(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(companies.Companies) != 2 || companies.Companies[0].Name != "Acme" || companies.Companies[0].ProblemCount != 2 {
		t.Errorf("unexpected companies %+v", companies.Companies)
	}

	problems, err := c.CompanyProblems(ctx, proto.CompanyProblemsRequest{Company: "Acme", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(problems.Problems) != 1 || problems.Problems[0].Key != "two-sum" {
		t.Errorf("unexpected problems %+v", problems.Problems)
	}

	_, err = c.CompanyProblems(ctx, proto.CompanyProblemsRequest{Company: "Nope"})
	if !errors.Is(err, apperrors.ErrProblemNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRebuildOverRPC(t *testing.T) {
	c := serve(t, true, stubRebuilder{})
	resp, err := c.Rebuild(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Version != 7 || !resp.Published {
		t.Errorf("unexpected rebuild response %+v", resp)
	}

	failing := serve(t, true, stubRebuilder{err: apperrors.ErrNoData})
	_, err = failing.Rebuild(context.Background(), "cli")
	if !errors.Is(err, apperrors.ErrSourceUnavailable) {
		t.Errorf("expected unavailable, got %v", err)
	}

	none := serve(t, true, nil)
	if _, err := none.Rebuild(context.Background(), ""); err == nil {
		t.Error("expected error without rebuilder")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{apperrors.ErrProblemNotFound, proto.CodeNotFound},
		{apperrors.ErrIndexNotReady, proto.CodeNotReady},
		{apperrors.ErrInvalidInput, proto.CodeInvalid},
		{apperrors.ErrNoData, proto.CodeUnavailable},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
