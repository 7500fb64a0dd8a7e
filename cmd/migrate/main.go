// Command migrate applies the BigQuery schema migrations under
// migrations/bigquery. Files are named NNNN_description.sql and run in
// version order; applied versions are tracked in a schema_migrations table
// so re-running is safe. The SQL may reference {{PROJECT_ID}} and
// {{DATASET_ID}}, which are substituted before execution.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/fsi-demo/datakit/internal/config"
	"github.com/fsi-demo/datakit/internal/logger"
)

type migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

type migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
}

var filePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

func main() {
	log := logger.New()
	cfg := config.Load()

	projectID := flag.String("project", cfg.ProjectID, "GCP project ID")
	datasetID := flag.String("dataset", cfg.DatasetID, "BigQuery dataset ID")
	dir := flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
	appliedBy := flag.String("applied-by", "migrate-cli", "Recorded as the applier of each migration")
	flag.Parse()

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag or " + config.EnvProjectID + " is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	m := &migrator{
		client:    client,
		projectID: *projectID,
		datasetID: *datasetID,
		appliedBy: *appliedBy,
	}

	log.Info().
		Str("project", *projectID).
		Str("dataset", *datasetID).
		Msg("Connected to BigQuery")

	if err := m.ensureVersionTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create schema_migrations table")
	}

	pending, err := loadMigrations(*dir, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migration files")
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read applied migrations")
	}

	count := 0
	for _, mig := range pending {
		if sum, ok := applied[mig.Version]; ok {
			if sum != "" && sum != mig.Checksum {
				log.Fatal().
					Int("version", mig.Version).
					Str("name", mig.Name).
					Msg("Checksum mismatch: applied migration differs from the file on disk")
			}
			log.Info().Msgf("  [SKIP] %04d_%s (already applied)", mig.Version, mig.Name)
			continue
		}

		log.Info().Msgf("  [RUN]  %04d_%s", mig.Version, mig.Name)
		if err := m.apply(ctx, mig); err != nil {
			log.Fatal().Err(err).Msgf("Migration %04d_%s failed", mig.Version, mig.Name)
		}
		count++
	}

	if count == 0 {
		log.Info().Msg("No new migrations to apply")
	} else {
		log.Info().Int("applied", count).Msg("Migrations applied")
	}
}

func loadMigrations(dir, projectID, datasetID string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := filePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version in %s: %w", entry.Name(), err)
		}

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		sql := string(content)
		sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		migrations = append(migrations, migration{
			Version: version,
			Name:    matches[2],
			SQL:     sql,
			// Checksum covers the file as written, before placeholder
			// substitution, so the same migration matches across projects.
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func (m *migrator) run(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := m.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func (m *migrator) versionTable() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.projectID, m.datasetID)
}

func (m *migrator) ensureVersionTable(ctx context.Context) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version    INT64 NOT NULL,
			name       STRING NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			checksum   STRING,
			applied_by STRING
		)
	`, m.versionTable())
	return m.run(ctx, sql, nil)
}

func (m *migrator) appliedVersions(ctx context.Context) (map[int]string, error) {
	q := m.client.Query(fmt.Sprintf(
		"SELECT version, checksum FROM %s ORDER BY version", m.versionTable()))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	applied := make(map[int]string)
	for {
		var row struct {
			Version  int64
			Checksum bigquery.NullString
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		applied[int(row.Version)] = row.Checksum.StringVal
	}

	return applied, nil
}

func (m *migrator) apply(ctx context.Context, mig migration) error {
	if err := m.run(ctx, mig.SQL, nil); err != nil {
		return err
	}

	record := fmt.Sprintf(`
		INSERT INTO %s (version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.versionTable())
	return m.run(ctx, record, []bigquery.QueryParameter{
		{Name: "version", Value: mig.Version},
		{Name: "name", Value: mig.Name},
		{Name: "checksum", Value: mig.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	})
}
