// Command sercha-ingest keeps target stores in step with configured providers
// through tick-driven burst ingestion.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-ingest/internal/connectors"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(func(ctx context.Context, opts cli.Options) (*cli.App, error) {
		return buildApp(ctx, opts, connectors.NewFactory())
	})

	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
