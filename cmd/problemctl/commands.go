package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/company-problem-index/pkg/proto"
)

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Rebuild the index and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(ctx context.Context, b backend) error {
				resp, err := b.Rebuild(ctx, "cli")
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(w io.Writer) {
					fmt.Fprintf(w, "version %d: %d problems from %d companies (%d records discarded) in %s\n",
						resp.Version, resp.Problems, resp.Companies, resp.Discarded,
						time.Duration(resp.DurationMs)*time.Millisecond)
				})
			})
		},
	}
}

func newLookupCmd() *cobra.Command {
	var window, mode string
	cmd := &cobra.Command{
		Use:   "lookup <key-or-title>",
		Short: "Show the companies that asked a problem",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, b backend) error {
				resp, err := b.Lookup(ctx, proto.LookupRequest{
					Input:  strings.Join(args, " "),
					Mode:   mode,
					Window: window,
				})
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(w io.Writer) { printProblem(w, resp.Problem) })
			})
		},
	}
	cmd.Flags().StringVar(&window, "window", "", "recency window (30, 60, 90, all)")
	cmd.Flags().StringVar(&mode, "mode", proto.ModeResolve, "lookup mode (resolve, identity, title)")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find problems whose title or key contains the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, b backend) error {
				resp, err := b.Search(ctx, proto.SearchRequest{Query: strings.Join(args, " "), Limit: limit})
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "TITLE\tKEY\tCOMPANIES")
					for _, r := range resp.Results {
						fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Title, r.Key, r.CompanyCount)
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, func(ctx context.Context, b backend) error {
				resp, err := b.Status(ctx)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(w io.Writer) {
					if !resp.Ready {
						fmt.Fprintln(w, "index not built yet")
						return
					}
					fmt.Fprintf(w, "version %d built %s: %d problems, %d companies, %d records discarded\n",
						resp.Version, time.Unix(resp.LastRebuiltAt, 0).UTC().Format(time.RFC3339),
						resp.TotalProblems, resp.TotalCompanies, resp.Discarded)
				})
			})
		},
	}
}

func newCompaniesCmd() *cobra.Command {
	var window string
	var limit int
	cmd := &cobra.Command{
		Use:   "companies [name]",
		Short: "List companies, or one company's problems by frequency",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, func(ctx context.Context, b backend) error {
				if len(args) == 0 {
					resp, err := b.Companies(ctx)
					if err != nil {
						return err
					}
					return render(cmd.OutOrStdout(), resp, func(w io.Writer) {
						tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
						fmt.Fprintln(tw, "COMPANY\tPROBLEMS")
						for _, c := range resp.Companies {
							fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.ProblemCount)
						}
						tw.Flush()
					})
				}
				resp, err := b.CompanyProblems(ctx, proto.CompanyProblemsRequest{
					Company: args[0],
					Window:  window,
					Limit:   limit,
				})
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), resp, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "TITLE\tDIFFICULTY\tFREQUENCY\tLAST SEEN")
					for _, p := range resp.Problems {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.Title, orDash(p.Difficulty), p.MaxFrequency, p.LastSeen)
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&window, "window", "", "recency window (30, 60, 90, all)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum problems (0 for all)")
	return cmd
}

func printProblem(w io.Writer, p proto.Problem) {
	fmt.Fprintf(w, "%s (%s)", p.Title, p.Key)
	if p.Difficulty != "" {
		fmt.Fprintf(w, " [%s]", p.Difficulty)
	}
	fmt.Fprintln(w)
	if p.Link != "" {
		fmt.Fprintln(w, p.Link)
	}
	if p.Window != "" {
		fmt.Fprintf(w, "window: %s\n", p.Window)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPANY\tFREQUENCY\tLAST SEEN\tWINDOWS")
	for _, c := range p.Companies {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", c.Company, c.MaxFrequency, c.LastSeen, orDash(strings.Join(c.WindowsSeen, ",")))
	}
	tw.Flush()
}

// render prints v as indented JSON under --json, or through text otherwise.
func render(w io.Writer, v any, text func(w io.Writer)) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
