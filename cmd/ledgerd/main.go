// Command ledgerd runs the ledger kernel: the append pipeline, its
// projection orphan sweeper, its fanout hub, and the background tickers
// that keep both healthy. It is a process, not an HTTP API — callers talk to
// the store and fanout packages directly (embedded, or via whatever RPC
// layer wraps them); ledgerd only exposes a metrics endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/certen/ledger-kernel/internal/config"
	"github.com/certen/ledger-kernel/internal/fanout"
	"github.com/certen/ledger-kernel/internal/kernelcrypto"
	"github.com/certen/ledger-kernel/internal/link"
	"github.com/certen/ledger-kernel/internal/metrics"
	"github.com/certen/ledger-kernel/internal/pact"
	"github.com/certen/ledger-kernel/internal/projection"
	"github.com/certen/ledger-kernel/internal/store"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		dev      = flag.Bool("dev", false, "relax validation for local development (generates a signing key if missing)")
		showHelp = flag.Bool("help", false, "show help message")
	)
	flag.Parse()
	if *showHelp {
		flag.Usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	if *dev {
		if err := cfg.ValidateForDevelopment(); err != nil {
			log.Fatalf("%v", err)
		}
	} else if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Printf("[ledgerd] connecting to database")
	dbClient, err := store.NewClient(cfg, store.WithLogger(log.New(log.Writer(), "[Store] ", log.LstdFlags)))
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer dbClient.Close()

	if err := dbClient.MigrateUp(ctx); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	log.Printf("[ledgerd] schema migrated")

	keyManager, err := kernelcrypto.LoadOrGenerateKey(cfg.KernelSigningKeyPath)
	if err != nil {
		log.Fatalf("load signing key: %v", err)
	}
	log.Printf("[ledgerd] kernel public key: %s", keyManager.PublicKeyHex())

	if cfg.BootstrapPath != "" {
		if err := loadBootstrap(ctx, dbClient, cfg.BootstrapPath); err != nil {
			log.Fatalf("load bootstrap config: %v", err)
		}
	}

	reg := metrics.NewRegistry()

	// ledgerStore is the Go API callers embed ledgerd for; ledgerd itself
	// has no routing layer in front of it (see the package doc comment).
	_ = store.NewLedgerStore(dbClient, cfg.AppendMaxRetries, cfg.AppendRetryBase)

	cursors := store.NewCursorRepository(dbClient)
	sweeper := projection.NewOrphanSweeper(cursors, cfg.ProjectionSweepInterval, cfg.ProjectionOrphanAfter)
	go sweeper.Run(ctx)
	log.Printf("[ledgerd] projection orphan sweeper running every %s", cfg.ProjectionSweepInterval)

	hub := fanout.NewHub(dbClient, cfg.FanoutReplayCap, cfg.FanoutSubscriberBuf, cfg.FanoutHeartbeat)
	hub.OnDrop = func(containerID string) {
		reg.FanoutDropTotal.WithLabelValues(containerID).Inc()
	}
	go func() {
		if err := hub.ListenAndServe(ctx, dbClient.DSN()); err != nil && ctx.Err() == nil {
			log.Printf("[ledgerd] fanout listener stopped: %v", err)
		}
	}()
	log.Printf("[ledgerd] fanout hub listening on %s", store.NotifyChannel)

	mirror, err := fanout.NewFirestoreMirror(ctx, fanout.FirestoreMirrorConfig{
		ProjectID: cfg.FirestoreProjectID,
		Enabled:   cfg.FirestoreEnabled,
	})
	if err != nil {
		log.Fatalf("init firestore mirror: %v", err)
	}
	defer mirror.Close()
	if mirror.IsEnabled() {
		log.Printf("[ledgerd] firestore mirror enabled for project %s", cfg.FirestoreProjectID)
	}

	metricsServer := serveMetrics(cfg.MetricsAddr, reg)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ledgerd] metrics server shutdown error: %v", err)
		}
	}()

	log.Printf("[ledgerd] ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("[ledgerd] shutting down")
	cancel()
	sweeper.Stop()
}

// loadBootstrap seeds the genesis pacts a fresh deployment needs before
// it can accept its first commit, writing them to the pact table. The
// genesis ASC issuers are only logged; they are not persisted.
func loadBootstrap(ctx context.Context, db *store.Client, path string) error {
	bootstrap, err := config.LoadBootstrap(path)
	if err != nil {
		return fmt.Errorf("read bootstrap file: %w", err)
	}

	for _, bp := range bootstrap.GenesisPacts {
		classes := make([]link.IntentClass, 0, len(bp.IntentClasses))
		for _, name := range bp.IntentClasses {
			class, err := parseIntentClass(name)
			if err != nil {
				return fmt.Errorf("bootstrap pact %s: %w", bp.PactID, err)
			}
			classes = append(classes, class)
		}

		p := &pact.Pact{
			PactID:          bp.PactID,
			Version:         1,
			ScopeType:       pact.ScopeType(bp.ScopeType),
			ScopeValue:      bp.ScopeValue,
			IntentClasses:   classes,
			Threshold:       bp.Threshold,
			Signers:         bp.Signers,
			SignatureScheme: pact.SignatureScheme(bp.SignatureScheme),
		}
		if err := store.NewPactRepository(db).Put(ctx, db.DB(), p); err != nil {
			return fmt.Errorf("bootstrap pact %s: %w", bp.PactID, err)
		}
		log.Printf("[ledgerd] bootstrapped pact %s (threshold %d of %d)", p.PactID, p.Threshold, len(p.Signers))
	}

	for _, issuer := range bootstrap.GenesisASCIssuers {
		id := issuer.IssuerID
		if id == "" {
			id = uuid.New().String()
		}
		log.Printf("[ledgerd] recognized genesis ASC issuer %s (public key %s)", id, issuer.PublicKey)
	}

	return nil
}

func parseIntentClass(name string) (link.IntentClass, error) {
	switch name {
	case "observation":
		return link.Observation, nil
	case "conservation":
		return link.Conservation, nil
	case "entropy":
		return link.Entropy, nil
	case "evolution":
		return link.Evolution, nil
	default:
		return 0, fmt.Errorf("unknown intent class %q", name)
	}
}
