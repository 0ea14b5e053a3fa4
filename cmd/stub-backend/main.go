// cmd/stub-backend/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"loan-console/internal/common/logger"
	"loan-console/internal/stub"
)

func main() {
	fs := flag.NewFlagSet("stub-backend", flag.ExitOnError)
	addr := fs.String("addr", envOr("STUB_ADDR", ":8080"), "listen address")
	origins := fs.String("cors", os.Getenv("STUB_CORS_ORIGINS"), "comma-separated allowed browser origins")
	secret := fs.String("secret", envOr("STUB_JWT_SECRET", "stub-secret"), "token signing secret")
	decision := fs.String("decision", "eligible", "canned decision: eligible or decline")
	level := fs.String("log-level", "debug", "log level")
	_ = fs.Parse(os.Args[1:])

	zapLog := logger.New(*level, "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	opts := []stub.Option{stub.WithLogger(log), stub.WithSecret(*secret)}
	if *decision != "eligible" {
		opts = append(opts, stub.WithDecision(*decision))
	}
	if *origins != "" {
		var list []string
		for _, o := range strings.Split(*origins, ",") {
			if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
				list = append(list, o)
			}
		}
		opts = append(opts, stub.WithCORS(list...))
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           stub.New(opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zapLog.Info("stub backend listening",
			zap.String("addr", *addr),
			zap.String("login", stub.DefaultEmail),
			zap.Int("addressId", stub.DefaultAddressID),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("stub backend failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping stub backend...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLog.Error("shutdown failed", zap.Error(err))
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
