// cmd/console/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loan-console/internal/api/applications"
	"loan-console/internal/api/dashboard"
	"loan-console/internal/api/locations"
	"loan-console/internal/api/users"
	"loan-console/internal/common/config"
	httpclient "loan-console/internal/common/http"
	"loan-console/internal/common/logger"
	"loan-console/internal/common/observability"
	"loan-console/internal/gate"
	"loan-console/internal/session"
	"loan-console/internal/view"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitSignedIn = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("console", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", os.Getenv("LOAN_CONSOLE_CONFIG"), "path to a config YAML file")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		usage(stderr)
		return exitUsage
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitError
	}

	c, cleanup, err := newConsole(cfg, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "startup: %v\n", err)
		return exitError
	}
	defer cleanup()

	return c.dispatch(ctx, global.Args())
}

// console is the command-line view layer: every command calls one API module
// and renders the result as JSON, or its error as a banner.
type console struct {
	cfg       *config.Config
	log       logger.Logger
	client    *httpclient.Client
	session   *session.Manager
	gate      *gate.Gate
	apps      *applications.Service
	users     *users.Service
	locations *locations.Service
	dashboard *dashboard.Service
	banner    view.Banner
	stdout    io.Writer
	stderr    io.Writer
}

func newConsole(cfg *config.Config, stdout, stderr io.Writer) (*console, func(), error) {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)

	store, closeStore, err := session.NewStore(cfg.Session)
	if err != nil {
		_ = zapLog.Sync()
		return nil, nil, err
	}

	opts := []httpclient.Option{httpclient.WithLogger(log)}
	if cfg.API.Timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(config.GetDuration(cfg.API.Timeout)))
	}
	if cfg.API.RateLimit > 0 {
		opts = append(opts, httpclient.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst))
	}
	client := httpclient.NewClient(cfg.API.BaseURL, opts...)

	obs := observability.Noop()
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		obs = observability.New(cfg.App.Name)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server failed", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	mgr := session.NewManager(client, store, log)
	c := &console{
		cfg:     cfg,
		log:     log,
		client:  client,
		session: mgr,
		gate:    gate.New(mgr, "", log),
		apps: applications.NewService(applications.ServiceDependencies{
			Transport: client, Logger: log, Observability: obs, APIPrefix: cfg.API.APIPrefix,
		}),
		users: users.NewService(users.ServiceDependencies{
			Transport: client, Logger: log, Observability: obs, APIPrefix: cfg.API.APIPrefix,
		}),
		locations: locations.NewService(locations.ServiceDependencies{
			Transport: client, Logger: log, Observability: obs, APIPrefix: cfg.API.APIPrefix,
		}),
		dashboard: dashboard.NewService(dashboard.ServiceDependencies{
			Transport: client, Logger: log, Observability: obs, APIPrefix: cfg.API.APIPrefix,
		}),
		stdout: stdout,
		stderr: stderr,
	}

	cleanup := func() {
		c.gate.Stop()
		if metricsSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = metricsSrv.Shutdown(ctx)
			cancel()
		}
		obs.Shutdown()
		if err := closeStore(); err != nil {
			log.Warn("closing session store failed", map[string]interface{}{"error": err.Error()})
		}
		_ = zapLog.Sync()
	}
	return c, cleanup, nil
}

// render writes v as indented JSON.
func (c *console) render(v interface{}) int {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return c.fail(err)
	}
	return exitOK
}

// fail shows err in the banner and returns the exit code.
func (c *console) fail(err error) int {
	c.banner.Show(err)
	fmt.Fprintln(c.stderr, c.banner.String())
	return exitError
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: console [-config file] <command> [flags]

Session:
  login -email E [-password P]      sign in (password also from LOAN_CONSOLE_PASSWORD)
  logout                            sign out; safe to repeat
  whoami                            show the session state

Loan applications:
  apps list [-status S] [-page N] [-size N]
  apps get -id ID
  apps create -first .. -last .. -dob YYYY-MM-DD -ssn .. -email .. -phone ..
              -income N -income-type T -amount N -address-id ID
  apps update -id ID [any create flag]
  apps patch -id ID -set field=value [-set ...]
  apps decision -id ID
  apps address-check -address "..."

Other:
  address-check -address "..."      location eligibility check
  users list | get -id | create | update -id | delete -id
  dashboard [-watch 10s] [-count N]
  sidebar [collapse|expand|toggle]
`)
}
