package fanout

import (
	"context"
	"fmt"
	"log"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/certen/ledger-kernel/internal/store"
)

// FirestoreMirror optionally copies every appended entry into Firestore
// for off-cluster durability and ad-hoc querying. It is a no-op client
// when disabled, so callers never need to branch on whether mirroring
// is configured.
type FirestoreMirror struct {
	app       *firebase.App
	firestore *gcpfirestore.Client
	projectID string
	logger    *log.Logger
	enabled   bool
}

// FirestoreMirrorConfig configures an optional Firestore mirror.
type FirestoreMirrorConfig struct {
	ProjectID       string
	CredentialsFile string
	Enabled         bool
	Logger          *log.Logger
}

// NewFirestoreMirror builds a FirestoreMirror. When cfg.Enabled is
// false it returns a no-op mirror without touching the network.
func NewFirestoreMirror(ctx context.Context, cfg FirestoreMirrorConfig) (*FirestoreMirror, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[FirestoreMirror] ", log.LstdFlags)
	}
	m := &FirestoreMirror{projectID: cfg.ProjectID, logger: cfg.Logger, enabled: cfg.Enabled}
	if !cfg.Enabled {
		cfg.Logger.Println("firestore mirror disabled - running in no-op mode")
		return m, nil
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("fanout: FIRESTORE_PROJECT_ID is required when the mirror is enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("fanout: init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("fanout: init firestore client: %w", err)
	}
	m.app = app
	m.firestore = client
	cfg.Logger.Printf("firestore mirror initialized for project %s", cfg.ProjectID)
	return m, nil
}

// IsEnabled reports whether the mirror is actually writing.
func (m *FirestoreMirror) IsEnabled() bool {
	return m != nil && m.enabled && m.firestore != nil
}

// Close releases the underlying Firestore client.
func (m *FirestoreMirror) Close() error {
	if m.firestore == nil {
		return nil
	}
	return m.firestore.Close()
}

// entryDoc is the document shape written per mirrored entry, at
// containers/{containerID}/entries/{sequence}.
type entryDoc struct {
	ContainerID  string `firestore:"containerId"`
	Sequence     uint64 `firestore:"sequence"`
	EntryHash    string `firestore:"entryHash"`
	LinkHash     string `firestore:"linkHash"`
	PreviousHash string `firestore:"previousHash"`
	AtomHash     string `firestore:"atomHash"`
	IntentClass  int16  `firestore:"intentClass"`
	PhysicsDelta string `firestore:"physicsDelta"`
	AuthorPubKey string `firestore:"authorPubKey"`
	PactID       string `firestore:"pactId"`
	TsUnixMs     int64  `firestore:"tsUnixMs"`
}

// Mirror writes e to Firestore, keyed by its own (container, sequence)
// so a re-delivered entry overwrites itself rather than duplicating.
func (m *FirestoreMirror) Mirror(ctx context.Context, e *store.Entry) error {
	if !m.IsEnabled() {
		return nil
	}
	docPath := fmt.Sprintf("containers/%s/entries/%d", e.ContainerID, e.Sequence)
	doc := entryDoc{
		ContainerID:  e.ContainerID,
		Sequence:     e.Sequence,
		EntryHash:    e.EntryHash,
		LinkHash:     e.LinkHash,
		PreviousHash: e.PreviousHash,
		AtomHash:     e.AtomHash,
		IntentClass:  e.IntentClass,
		PhysicsDelta: e.PhysicsDelta,
		AuthorPubKey: e.AuthorPubKey,
		PactID:       e.PactID,
		TsUnixMs:     e.TsUnixMs,
	}
	if _, err := m.firestore.Doc(docPath).Set(ctx, doc); err != nil {
		return fmt.Errorf("fanout: mirror entry %s: %w", docPath, err)
	}
	return nil
}
