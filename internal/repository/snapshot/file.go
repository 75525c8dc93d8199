package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/domain/build"
)

const (
	// CreatedEpochSecondsKey holds the creation time as fractional Unix seconds.
	CreatedEpochSecondsKey = "createdEpochSeconds"
	// CreatedISO8601Key holds the creation time as an ISO-8601 UTC string.
	CreatedISO8601Key = "createdISO8601"
	// BuildInfoKey holds the provenance object.
	BuildInfoKey = "buildInfo"

	// iso8601Layout matches millisecond-precision UTC timestamps such as 2024-05-01T10:00:00.000Z.
	iso8601Layout = "2006-01-02T15:04:05.000Z07:00"
)

// Provenance records who and what produced a build.
type Provenance struct {
	RunID     string
	Hostname  string
	Username  string
	GitCommit string
	GitBranch string
}

// Snapshot is the metadata written next to the rendered manifest.
type Snapshot struct {
	// Config is the descriptor mapping.
	Config build.BuildConfig
	// CreatedAt is the moment the snapshot was taken.
	CreatedAt time.Time
	// Provenance is optional build context.
	Provenance Provenance
}

// Repository defines persistence operations for the snapshot.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
}

// FileRepository persists the snapshot to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the snapshot file.
	path string
	// mu protects concurrent access to the snapshot file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the snapshot file does not exist yet.
	ErrNotFound = errors.New("snapshot not found")
	// errSnapshotIsNotSet is returned when Save receives nil.
	errSnapshotIsNotSet = errors.New("snapshot is not set")
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the snapshot file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Save writes the snapshot to disk. Derived timestamp keys override descriptor keys of the same name.
func (r *FileRepository) Save(_ context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return errSnapshotIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := structpb.NewStruct(toFields(snapshot))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("%w: write snapshot file: %w", build.ErrIO, err)
	}

	return nil
}

// Load reads the snapshot from disk.
func (r *FileRepository) Load(_ context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}

	return fromFields(document.AsMap())
}

// toFields flattens a snapshot into the JSON document layout.
func toFields(snapshot *Snapshot) map[string]any {
	fields := make(map[string]any, len(snapshot.Config)+3)
	for key, value := range snapshot.Config {
		fields[key] = value
	}

	created := snapshot.CreatedAt.UTC()
	fields[CreatedEpochSecondsKey] = float64(created.UnixMilli()) / 1000
	fields[CreatedISO8601Key] = created.Format(iso8601Layout)

	info := make(map[string]any, 5)
	for key, value := range map[string]string{
		"runId":     snapshot.Provenance.RunID,
		"hostname":  snapshot.Provenance.Hostname,
		"username":  snapshot.Provenance.Username,
		"gitCommit": snapshot.Provenance.GitCommit,
		"gitBranch": snapshot.Provenance.GitBranch,
	} {
		if value != "" {
			info[key] = value
		}
	}

	if len(info) > 0 {
		fields[BuildInfoKey] = info
	}

	return fields
}

// fromFields rebuilds a snapshot from a decoded JSON document.
func fromFields(fields map[string]any) (*Snapshot, error) {
	snapshot := &Snapshot{
		Config: make(build.BuildConfig, len(fields)),
	}

	for key, value := range fields {
		switch key {
		case CreatedEpochSecondsKey:
			continue
		case CreatedISO8601Key:
			raw, _ := value.(string) //nolint:errcheck // Type is checked by the parse below.

			created, err := time.Parse(iso8601Layout, raw)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", CreatedISO8601Key, err)
			}

			snapshot.CreatedAt = created
		case BuildInfoKey:
			info, _ := value.(map[string]any) //nolint:errcheck // Unknown shapes yield empty provenance.
			snapshot.Provenance = Provenance{
				RunID:     stringField(info, "runId"),
				Hostname:  stringField(info, "hostname"),
				Username:  stringField(info, "username"),
				GitCommit: stringField(info, "gitCommit"),
				GitBranch: stringField(info, "gitBranch"),
			}
		default:
			if s, ok := value.(string); ok {
				snapshot.Config[key] = s
			}
		}
	}

	return snapshot, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string) //nolint:errcheck // Missing keys are empty.
	return s
}
