package main

import (
	"context"
	"fmt"
	"os"

	"github.com/stayml/bookingcast/internal/app"
	"github.com/stayml/bookingcast/internal/observability"
	"github.com/stayml/bookingcast/internal/platform/shutdown"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Log.Sync()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	otelStop := observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: "bookingcast",
		Environment: a.Config.Env,
	})
	defer func() { _ = otelStop(context.Background()) }()

	if err := a.Run(ctx); err != nil {
		fmt.Printf("server exited: %v\n", err)
		os.Exit(1)
	}
}
