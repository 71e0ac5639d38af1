package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"tractor.dev/nannboy/dev"
	"tractor.dev/toolkit-go/engine/cli"
)

func serveCmd() *cli.Command {
	cmd := &cli.Command{
		Usage: "serve",
		Short: "serve the page, rebuilt per request, with live reload",
		Args:  cli.ExactArgs(0),
	}
	flags := addBuildFlags(cmd)
	addr := cmd.Flags().String("addr", ":7777", "listen address")
	cmd.Run = func(ctx *cli.Context, args []string) {
		p, err := packager(flags)
		fatal(err)
		s := dev.NewServer(p)

		wctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		go s.Watch(wctx)

		srv := &http.Server{Addr: *addr, Handler: s.Handler()}
		go func() {
			<-wctx.Done()
			srv.Close()
		}()
		slog.Info("Serving dev server at http://localhost" + *addr + " ...")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(err)
		}
	}
	return cmd
}
