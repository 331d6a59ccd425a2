package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/dbdev/pkg/auth"
	"github.com/matzehuels/dbdev/pkg/data"
	"github.com/matzehuels/dbdev/pkg/query"
	"github.com/matzehuels/dbdev/pkg/registry"
	"github.com/matzehuels/dbdev/pkg/session"
)

// queryTimeout bounds one registry command.
const queryTimeout = 30 * time.Second

// withQueries runs fn with the registry queries and a cache-backed query
// client. A stored CLI session supplies the access token.
func (c *CLI) withQueries(ctx context.Context, fn func(ctx context.Context, q *data.Queries, client *query.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if store, err := session.NewCLIStore(""); err == nil {
		if sess, _ := store.GetSession(ctx); sess != nil {
			ctx = auth.WithAccessToken(ctx, sess.Tokens.AccessToken)
		}
	}

	st, err := c.openStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	backend, err := c.openCache(ctx)
	if err != nil {
		c.Logger.Warn("persistent cache unavailable", "error", err)
		backend = nil
	}
	var client *query.Client
	if backend != nil {
		defer backend.Close()
		client = c.newQueryClient(backend)
	} else {
		client = query.NewClient(query.WithLogger(c.Logger))
	}
	defer client.Close()

	defer newProgress(c.Logger).done("registry query")
	return fn(ctx, data.New(st), client)
}

// fetch reads one query through client. Fresh cached data returns without
// a network call.
func fetch[V, T any](ctx context.Context, client *query.Client, def query.Definition[V, T], vars V) (T, error) {
	if !def.Ready(vars) {
		return def.Fetch(ctx, vars)
	}
	obs := query.Use(ctx, client, def, vars)
	defer obs.Close()
	if cur := obs.Current(); cur.Status == query.StatusSuccess && !cur.Fetching {
		loggerFromContext(ctx).Debug("served from cache", "key", obs.Key().String())
	}
	st, err := obs.Wait(ctx)
	if err != nil {
		return st.Data, err
	}
	return st.Data, st.Err
}

// spin runs fn behind a spinner.
func spin(ctx context.Context, msg string, fn func() error) error {
	s := newSpinnerWithContext(ctx, msg)
	s.Start()
	defer s.Stop()
	return fn()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// versionsCommand creates the versions command.
func (c *CLI) versionsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "versions <handle> <partial-name>",
		Short:   "List the published versions of a package, newest first",
		Example: `  dbdev versions olirice index_advisor`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withQueries(cmd.Context(), func(ctx context.Context, q *data.Queries, client *query.Client) error {
				vars := data.PackageVersionsVariables{Handle: args[0], PartialName: args[1]}
				var rows []registry.PackageVersion
				err := spin(ctx, "Fetching versions...", func() (err error) {
					rows, err = fetch(ctx, client, q.PackageVersions, vars)
					return err
				})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), rows)
				}
				if len(rows) == 0 {
					printWarning("No versions of %s", registry.FullName(vars.Handle, vars.PartialName))
					return nil
				}
				printTitle(registry.FullName(vars.Handle, vars.PartialName))
				table := make([][]string, 0, len(rows))
				for _, v := range rows {
					table = append(table, []string{v.Version, v.CreatedAt.Format("Jan 2, 2006")})
				}
				printTable([]string{"VERSION", "PUBLISHED"}, table)
				printNewline()
				printNextStep("Install", fmt.Sprintf("select dbdev.install('%s');", rows[0].PackageName))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// popularCommand creates the popular command.
func (c *CLI) popularCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "popular",
		Short: "List the most downloaded packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withQueries(cmd.Context(), func(ctx context.Context, q *data.Queries, client *query.Client) error {
				var rows []registry.Package
				err := spin(ctx, "Fetching popular packages...", func() (err error) {
					rows, err = fetch(ctx, client, q.PopularPackages, data.PopularPackagesVariables{})
					return err
				})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), rows)
				}
				printTitle("Popular packages")
				printTable([]string{"PACKAGE", "LATEST", "DOWNLOADS"}, packageRows(rows, true))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func packageRows(pkgs []registry.Package, downloads bool) [][]string {
	rows := make([][]string, 0, len(pkgs))
	for _, p := range pkgs {
		row := []string{p.PackageName, p.LatestVersion}
		if downloads {
			row = append(row, strconv.FormatInt(p.Downloads, 10))
		}
		rows = append(rows, row)
	}
	return rows
}

// profileCommand creates the profile command.
func (c *CLI) profileCommand() *cobra.Command {
	var page int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "profile <handle>",
		Short: "Show a publisher and their packages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withQueries(cmd.Context(), func(ctx context.Context, q *data.Queries, client *query.Client) error {
				var (
					p    registry.Profile
					pkgs []registry.Package
				)
				err := spin(ctx, "Fetching profile...", func() error {
					g, gctx := errgroup.WithContext(ctx)
					g.Go(func() (err error) {
						p, err = fetch(gctx, client, q.Profile, data.ProfileVariables{Handle: args[0]})
						return err
					})
					g.Go(func() (err error) {
						pkgs, err = fetch(gctx, client, q.Packages, data.PackagesVariables{Handle: args[0], Page: page})
						return err
					})
					return g.Wait()
				})
				if err != nil {
					return err
				}

				if asJSON {
					return printJSON(cmd.OutOrStdout(), map[string]any{"profile": p, "packages": pkgs})
				}
				printTitle(p.DisplayName)
				printKeyValue("Handle", "@"+p.Handle)
				printKeyValue("Type", p.Type)
				if p.Bio != "" {
					printKeyValue("Bio", p.Bio)
				}
				if p.ContactEmail != "" {
					printKeyValue("Email", p.ContactEmail)
				}
				printNewline()
				if len(pkgs) == 0 {
					printInfo("No packages on page %d", page)
					return nil
				}
				printTable([]string{"PACKAGE", "LATEST"}, packageRows(pkgs, false))
				if len(pkgs) == registry.DefaultPageSize {
					printNextStep("More", fmt.Sprintf("dbdev profile %s --page %d", p.Handle, page+1))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page of packages (20 per page)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
