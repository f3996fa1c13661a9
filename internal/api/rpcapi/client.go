package rpcapi

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/rpc"
)

// Client is a typed ProblemService client. Remote errors are mapped back
// onto the apperrors sentinels.
type Client struct {
	conn *rpc.Client
}

func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := rpc.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) Lookup(ctx context.Context, req proto.LookupRequest) (*proto.LookupResponse, error) {
	var resp proto.LookupResponse
	if err := c.call(ctx, proto.MethodLookup, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Search(ctx context.Context, req proto.SearchRequest) (*proto.SearchResponse, error) {
	var resp proto.SearchResponse
	if err := c.call(ctx, proto.MethodSearch, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Status(ctx context.Context) (*proto.StatusResponse, error) {
	var resp proto.StatusResponse
	if err := c.call(ctx, proto.MethodStatus, proto.StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Companies(ctx context.Context) (*proto.CompaniesResponse, error) {
	var resp proto.CompaniesResponse
	if err := c.call(ctx, proto.MethodCompanies, proto.CompaniesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CompanyProblems(ctx context.Context, req proto.CompanyProblemsRequest) (*proto.CompanyProblemsResponse, error) {
	var resp proto.CompanyProblemsResponse
	if err := c.call(ctx, proto.MethodCompanyProblems, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Rebuild(ctx context.Context, trigger string) (*proto.RebuildResponse, error) {
	var resp proto.RebuildResponse
	if err := c.call(ctx, proto.MethodRebuild, proto.RebuildRequest{Trigger: trigger}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	err := c.conn.Call(ctx, method, req, resp)
	var rpcErr *rpc.Error
	if !errors.As(err, &rpcErr) {
		return err
	}
	if sentinel := sentinelFor(rpcErr.Code); sentinel != nil {
		return fmt.Errorf("%s: %w", rpcErr.Message, sentinel)
	}
	return rpcErr
}

func sentinelFor(code string) error {
	switch code {
	case proto.CodeNotFound:
		return apperrors.ErrProblemNotFound
	case proto.CodeNotReady:
		return apperrors.ErrIndexNotReady
	case proto.CodeInvalid:
		return apperrors.ErrInvalidInput
	case proto.CodeRateLimited:
		return apperrors.ErrRateLimited
	case proto.CodeUnavailable:
		return apperrors.ErrSourceUnavailable
	default:
		return nil
	}
}
