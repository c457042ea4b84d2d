package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"filestore/pkg/cmd/server"

	"k8s.io/klog/v2"
)

func main() {
	defer klog.Flush()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := server.NewRootCommand(ctx, os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
