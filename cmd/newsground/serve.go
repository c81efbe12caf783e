package main

import (
	"github.com/spf13/cobra"

	"github.com/ersonp/newsground/internal/application/httpapi"
)

func newServeCmd() *cobra.Command {
	var addr string
	var noEscalate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolution API over HTTP",
		Long: `Serves the resolution API:

  GET  /api/resolve?q=&kind=&context=&symbols=
  POST /api/ground
  GET  /api/lookup?q=&kind=&force=
  GET  /api/entities/{id}
  GET  /api/cache/status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, depsOptions{escalate: !noEscalate}, func(d *Deps) error {
				if addr == "" {
					addr = d.Config.HTTP.Addr
				}
				router := httpapi.NewRouter(httpapi.Handlers{
					Resolve: d.Resolve,
					Ground:  d.Ground,
					Lookup:  d.Lookup,
					Entity:  d.Entity,
				}, httpapi.Options{CORSOrigins: d.Config.HTTP.CORSOrigins}, d.Logger)
				return httpapi.Serve(ctx, addr, router, d.Logger)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: http.addr)")
	cmd.Flags().BoolVar(&noEscalate, "no-escalate", false, "Ground without provider lookups")

	return cmd
}
