package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	examplecmd "github.com/louisbranch/grpcmetrics/internal/cmd/example"
)

func main() {
	cfg, err := examplecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[EXAMPLE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := examplecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
