package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fjacquet/statement-ledger/cmd/batch"
	"fjacquet/statement-ledger/cmd/convert"
	"fjacquet/statement-ledger/cmd/detect"
	"fjacquet/statement-ledger/cmd/root"
	"fjacquet/statement-ledger/cmd/serve"
	"fjacquet/statement-ledger/cmd/templates"
	"fjacquet/statement-ledger/cmd/validate"

	"github.com/joho/godotenv"
)

func init() {
	// Load environment variables silently first (no logging yet)
	loadEnvSilently()

	root.Init()

	root.Cmd.AddCommand(convert.Cmd)
	root.Cmd.AddCommand(detect.Cmd)
	root.Cmd.AddCommand(validate.Cmd)
	root.Cmd.AddCommand(templates.Cmd)
	root.Cmd.AddCommand(batch.Cmd)
	root.Cmd.AddCommand(serve.Cmd)
}

// loadEnvSilently loads .env from the working directory, if present,
// without overriding variables already set.
func loadEnvSilently() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load(".env")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.Cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
