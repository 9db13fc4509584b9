package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/fleetctl/pkg/breaker"
	"github.com/cuemby/fleetctl/pkg/config"
	"github.com/cuemby/fleetctl/pkg/connmgr"
	"github.com/cuemby/fleetctl/pkg/credentials"
	"github.com/cuemby/fleetctl/pkg/eventbus"
	"github.com/cuemby/fleetctl/pkg/execmediator"
	"github.com/cuemby/fleetctl/pkg/executor"
	"github.com/cuemby/fleetctl/pkg/log"
	"github.com/cuemby/fleetctl/pkg/metrics"
	"github.com/cuemby/fleetctl/pkg/permissions"
	"github.com/cuemby/fleetctl/pkg/repository/boltrepo"
	"github.com/cuemby/fleetctl/pkg/selfref"
	"github.com/cuemby/fleetctl/pkg/streammux"
	"github.com/cuemby/fleetctl/pkg/transport"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var cfg = config.Default()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "fleetctl - control plane for a fleet of Docker engines",
	Long: `fleetctl connects to standalone Docker hosts and Swarm clusters over
unix socket, plain TCP, TLS, or SSH, and exposes a uniform API for
inspecting and operating on containers, images, volumes, networks, and
swarm resources across all of them, with per-host circuit breakers and
shared log/stats/event streams.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"fleetctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	cfg.BindFlags(rootCmd.PersistentFlags())
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(applyCmd)
}

var rootLog zerolog.Logger

func initLogging() {
	if err := cfg.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	rootLog = log.New(log.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
}

// plane bundles every wired component a command needs, built the same way
// for both the long-running server and the one-shot host/user subcommands.
type plane struct {
	repo     *boltrepo.Store
	creds    *credentials.Store
	dialer   *transport.Dialer
	breakers *breaker.Manager
	perms    *permissions.Resolver
	conns    *connmgr.Manager
	mux      *streammux.Multiplexer
	mediator *execmediator.Mediator
	events   *eventbus.Bus
	detector *selfref.Detector
	exec     *executor.Executor
}

// buildPlane wires every component of the connection and streaming plane
// together, in the order their constructor dependencies require.
// pkg/executor, pkg/selfref, and pkg/streammux form a three-way
// construction cycle (the Multiplexer needs a SelfRefChecker, the
// Detector needs an Inspector satisfied by the Executor, and the Executor
// needs the Multiplexer): it is broken by constructing the Executor with
// a nil mux first and wiring the real one in afterward with SetMux.
func buildPlane(masterKeyHex string) (*plane, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("master key must be hex-encoded: %w", err)
	}

	repo, err := boltrepo.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	credStore, err := credentials.NewStore(key)
	if err != nil {
		repo.Close()
		return nil, err
	}

	dialer := transport.New(rootLog.With().Str("component", "transport").Logger())
	breakers := breaker.NewManager(cfg.Breaker)
	resolver := permissions.NewResolver(repo, cfg.GrantCacheTTL)

	conns := connmgr.New(repo, credStore, dialer, breakers, resolver, rootLog.With().Str("component", "connmgr").Logger(), connmgr.Config{
		HealthCheckInterval: cfg.HealthCheckInterval,
	})

	mediator := execmediator.New()
	events := eventbus.New(rootLog.With().Str("component", "eventbus").Logger())

	exec := executor.New(conns, dialer, breakers, nil, mediator, events)

	hostname, _ := os.Hostname()
	detector := selfref.New(exec, selfref.Config{
		SelfLabelKey:   "io.fleetctl.self",
		SelfLabelValue: "true",
		CacheTTL:       cfg.GrantCacheTTL,
	}, hostname)

	mux := streammux.New(cfg.StreamMux, detector, rootLog.With().Str("component", "streammux").Logger())
	exec.SetMux(mux)

	return &plane{
		repo:     repo,
		creds:    credStore,
		dialer:   dialer,
		breakers: breakers,
		perms:    resolver,
		conns:    conns,
		mux:      mux,
		mediator: mediator,
		events:   events,
		detector: detector,
		exec:     exec,
	}, nil
}

func (p *plane) Close() {
	p.conns.CloseAll()
	p.mux.Shutdown()
	_ = p.repo.Close()
}

func requireMasterKey() (string, error) {
	return cfg.MasterKey()
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fleetctl control plane",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := requireMasterKey()
		if err != nil {
			return err
		}
		p, err := buildPlane(key)
		if err != nil {
			return err
		}
		defer p.Close()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("repository", true, "open")
		metrics.RegisterComponent("connmgr", true, "ready")
		metrics.RegisterComponent("rpcapi", false, "listener not yet bound")

		collector := metrics.NewCollector(p.repo, p.conns, p.breakers, p.events, cfg.HealthCheckInterval)
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		collector.Start(ctx)
		defer collector.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())

		server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
		go func() {
			rootLog.Info().Str("addr", cfg.ListenAddr).Msg("listening")
			metrics.RegisterComponent("rpcapi", true, "listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				rootLog.Error().Err(err).Msg("http server error")
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		rootLog.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	},
}
