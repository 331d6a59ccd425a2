package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/matzehuels/dbdev/internal/web"
	"github.com/matzehuels/dbdev/pkg/data"
	"github.com/matzehuels/dbdev/pkg/observability/prom"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	var secure bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dbdev website",
		Long: `Run the dbdev website: the landing page with popular packages, publisher
and package pages, the profile editor and the JSON API under /api.

Prometheus metrics are served at /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			if cmd.Flags().Changed("addr") {
				c.cfg.Server.Addr = addr
			}

			store, err := c.openStore(ctx)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			backend, err := c.openCache(ctx)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer backend.Close()
			client := c.newQueryClient(backend)
			defer client.Close()

			sessions, states, err := c.openSessions(ctx)
			if err != nil {
				return fmt.Errorf("open sessions: %w", err)
			}
			defer sessions.Close()

			uploader, avatarDir, err := c.openUploader(ctx)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			authClient, err := c.authClient()
			if err != nil {
				return fmt.Errorf("auth client: %w", err)
			}

			prom.New(prometheus.DefaultRegisterer).Register()

			srvCfg := web.DefaultConfig()
			srvCfg.Revalidate = c.cfg.Server.Revalidate.Std()
			srvCfg.RevalidateNotFound = c.cfg.Server.RevalidateNotFound.Std()
			srvCfg.SecureCookies = secure

			srv, err := web.New(srvCfg, web.Deps{
				Queries:   data.New(store),
				Client:    client,
				Sessions:  sessions,
				States:    states,
				Auth:      authClient,
				JWTSecret: []byte(c.cfg.Supabase.JWTSecret),
				Uploader:  uploader,
				AvatarDir: avatarDir,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			printSuccess("Serving dbdev on %s", StyleLink.Render(displayAddr(c.cfg.Server.Addr)))
			printDetail("store: %s · cache: %s · storage: %s", c.cfg.Store.Backend, c.cfg.Cache.Backend, c.cfg.Storage.Backend)
			return srv.Run(ctx, c.cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&secure, "secure-cookies", false, "mark session cookies Secure (behind TLS)")
	return cmd
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
