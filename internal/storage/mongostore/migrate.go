package mongostore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mongodb"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Migrations are JSON arrays of database commands, run in order.
//
//go:embed migrations/*.json
var migrationFiles embed.FS

func MigrateUp(uri, database string) error {
	m, err := newMigrator(uri, database)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func MigrateDown(uri, database string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("migrate down: steps must be > 0")
	}
	m, err := newMigrator(uri, database)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// MigrationVersion reports the applied version. A fresh database reports 0.
func MigrationVersion(uri, database string) (uint, bool, error) {
	m, err := newMigrator(uri, database)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrator(m)

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration version: %w", err)
	}
	return version, dirty, nil
}

func newMigrator(uri, database string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open migrations: %w", err)
	}
	target, err := migrationURI(uri, database)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, target)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	_, _ = m.Close()
}

// migrationURI points the connection string at database, which is how the
// migrate driver selects where to run commands and record versions.
func migrationURI(uri, database string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse mongodb uri: %w", err)
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return "", fmt.Errorf("unsupported mongodb uri scheme %q", u.Scheme)
	}
	if database != "" {
		u.Path = "/" + database
	}
	if strings.Trim(u.Path, "/") == "" {
		return "", fmt.Errorf("mongodb uri has no database name")
	}
	q := u.Query()
	if q.Get("x-migrations-collection") == "" {
		q.Set("x-migrations-collection", CollectionSchemaMigrations)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SchemaVersion reads the recorded migration state directly. It is cheap
// enough for health checks.
func (s *Store) SchemaVersion(ctx context.Context) (int64, bool, error) {
	var doc struct {
		Version int64 `bson:"version"`
		Dirty   bool  `bson:"dirty"`
	}
	err := s.collection(CollectionSchemaMigrations).FindOne(ctx, bson.M{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return doc.Version, doc.Dirty, nil
}

// ErrMissingIndexes means the database has not been migrated. The unique
// indexes are the only guard against duplicate accounts and applications.
var ErrMissingIndexes = errors.New("required indexes missing")

// requiredIndexes lists the unique indexes each collection must carry.
var requiredIndexes = map[string][]string{
	CollectionUsers:             {"users_email_unique"},
	CollectionUserTokens:        {"usertokens_hash_unique"},
	CollectionEventApplications: {"eventapplications_user_event_unique"},
	CollectionJobApplications:   {"jobapplications_user_unique"},
}

// codeNamespaceNotFound is returned by listIndexes for a collection that does
// not exist yet.
const codeNamespaceNotFound = 26

// VerifyIndexes fails with ErrMissingIndexes when any required unique index
// is absent.
func (s *Store) VerifyIndexes(ctx context.Context) error {
	present := make(map[string]map[string]bool, len(requiredIndexes))
	for name := range requiredIndexes {
		specs, err := s.collection(name).Indexes().ListSpecifications(ctx)
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceNotFound {
			continue
		}
		if err != nil {
			return fmt.Errorf("list indexes on %s: %w", name, err)
		}
		present[name] = make(map[string]bool, len(specs))
		for _, spec := range specs {
			present[name][spec.Name] = true
		}
	}

	if missing := missingIndexes(present); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingIndexes, strings.Join(missing, ", "))
	}
	return nil
}

func missingIndexes(present map[string]map[string]bool) []string {
	var missing []string
	for collection, names := range requiredIndexes {
		for _, name := range names {
			if !present[collection][name] {
				missing = append(missing, collection+"."+name)
			}
		}
	}
	sort.Strings(missing)
	return missing
}
