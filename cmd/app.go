package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danielolaszy/weave/internal/config"
	"github.com/danielolaszy/weave/internal/engine"
	"github.com/danielolaszy/weave/internal/fetch"
	"github.com/danielolaszy/weave/internal/github"
	"github.com/danielolaszy/weave/internal/identity"
	"github.com/danielolaszy/weave/internal/jira"
	"github.com/danielolaszy/weave/internal/logging"
	"github.com/danielolaszy/weave/internal/reconcile"
	"github.com/danielolaszy/weave/internal/scanner"
	"github.com/danielolaszy/weave/internal/store"
)

// sources selects which clients a command requires.
type sources struct {
	github bool
	jira   bool
}

func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

func fetchOptions(c config.FetchConfig) fetch.Options {
	opts := fetch.DefaultOptions()
	if c.PageSize > 0 {
		opts.PageSize = c.PageSize
	}
	if c.MaxAttempts > 0 {
		opts.MaxAttempts = c.MaxAttempts
	}
	if c.RetryDelay > 0 {
		opts.RetryDelay = c.RetryDelay
	}
	if c.RateLimitMargin > 0 {
		opts.RateLimitMargin = c.RateLimitMargin
	}
	if c.MaxPages > 0 {
		opts.MaxPages = c.MaxPages
	}
	if c.MaxConsecutiveFailures > 0 {
		opts.MaxConsecutiveFailures = c.MaxConsecutiveFailures
	}
	return opts
}

// newEngine wires clients, store and resolver. Required sources must be
// fully configured; the JIRA client is also attached to commit-only passes
// when it is configured, for owner discovery.
func newEngine(ctx context.Context, cfg *config.Config, need sources, st *store.Store) (*engine.Engine, error) {
	opts := fetchOptions(cfg.Fetch)
	e := &engine.Engine{
		Store:        st,
		Resolver:     identity.NewResolver(st),
		Checkout:     cfg.Scanner.Checkout,
		InitialStage: cfg.Timeline.InitialStage,
		Ledger:       true,
	}

	if need.github {
		if err := config.ValidateGitHubConfig(cfg); err != nil {
			return nil, err
		}
		gh, err := github.NewClient(cfg.GitHub, fetch.NewGate("github", fetch.RealClock(), opts))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize github client: %w", err)
		}
		if err := gh.Verify(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to github: %w", err)
		}
		e.Commits = gh
	}

	jiraErr := config.ValidateJiraConfig(cfg)
	if need.jira && jiraErr != nil {
		return nil, jiraErr
	}
	if jiraErr == nil {
		jc, err := jira.NewClient(cfg.Jira, fetch.NewGate("jira", fetch.RealClock(), opts))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize jira client: %w", err)
		}
		if err := jc.Verify(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to jira: %w", err)
		}
		e.Issues = jc
	} else {
		logging.Debug("JIRA not configured, owners are resolved from stored mappings only")
	}

	if cfg.Identity.MappingsFile != "" {
		mappings, err := identity.LoadMappingsFile(cfg.Identity.MappingsFile)
		if err != nil {
			return nil, err
		}
		e.Resolver.Seed(mappings)
	}

	if cfg.Scanner.Enabled {
		e.Scanner = scanner.NewSCC(cfg.Scanner.Binary)
	}
	return e, nil
}

// runPass executes one pass and prints its summary.
func runPass(ctx context.Context, w io.Writer, need sources, branches []string) error {
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	e, err := newEngine(ctx, cfg, need, st)
	if err != nil {
		return err
	}

	if len(branches) == 0 {
		branches = cfg.GitHub.Branches
	}
	res, err := e.Run(ctx, engine.Options{Commits: need.github, Issues: need.jira, Branches: branches})
	if err != nil {
		return err
	}

	printReport(w, res)
	return nil
}

func printReport(w io.Writer, res *engine.Result) {
	r := res.Report
	fmt.Fprintf(w, "Run %s finished in %s\n", res.RunID, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	printCounts(w, "commits", r.Commits)
	printCounts(w, "issues", r.Issues)
	printCounts(w, "records", r.Records)
	if res.Learned > 0 {
		fmt.Fprintf(w, "Learned %d identity mappings\n", res.Learned)
	}
	if len(r.FailedKeys) > 0 {
		fmt.Fprintf(w, "Failed: %s\n", strings.Join(r.FailedKeys, ", "))
	}
}

func printCounts(w io.Writer, name string, c reconcile.Counts) {
	fmt.Fprintf(w, "  %-8s inserted=%d updated=%d skipped=%d failed=%d\n", name, c.Inserted, c.Updated, c.Skipped, c.Failed)
}
