package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/model"
	"github.com/aidanlsb/sramp/internal/sqlutil"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// artifactChildDeletes remove everything hanging off an artifact, children first.
var artifactChildDeletes = []string{
	`DELETE FROM target_attributes WHERE target_id IN (
		SELECT t.id FROM targets t JOIN relationships r ON r.id = t.relationship_id WHERE r.source_uuid = ?)`,
	`DELETE FROM targets WHERE relationship_id IN (SELECT id FROM relationships WHERE source_uuid = ?)`,
	`DELETE FROM relationship_attributes WHERE relationship_id IN (SELECT id FROM relationships WHERE source_uuid = ?)`,
	`DELETE FROM relationships WHERE source_uuid = ?`,
}

var artifactDeletes = append(append([]string{}, artifactChildDeletes...),
	`DELETE FROM properties WHERE artifact_uuid = ?`,
	`DELETE FROM classifications WHERE artifact_uuid = ?`,
	`DELETE FROM fts_content WHERE uuid = ?`,
	`DELETE FROM fts_trigram WHERE uuid = ?`,
	`DELETE FROM artifacts WHERE uuid = ?`,
)

func deleteStatements(ctx context.Context, e execer, stmts []string, uuid string) error {
	for _, stmt := range stmts {
		if _, err := e.ExecContext(ctx, stmt, uuid); err != nil {
			return errors.Wrapf(err, "delete artifact %s", uuid)
		}
	}
	return nil
}

// SaveArtifact replaces the artifact row and all of its properties,
// classifications, relationships and full-text entry. normalized is the
// artifact's classifier set expanded with ancestor classes.
// Placeholder targets (no UUID) are not stored.
func (s *Store) SaveArtifact(ctx context.Context, a *model.Artifact, normalized []string) error {
	if a.UUID == "" {
		return errors.New("artifact has no uuid")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := deleteStatements(ctx, tx, artifactDeletes, a.UUID); err != nil {
		return err
	}

	var derivedFrom any
	if a.DerivedFrom != "" {
		derivedFrom = a.DerivedFrom
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO artifacts (uuid, name, model, type, description, version, mime_type,
			created_by, created_at, last_modified_at, derived, derived_from, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UUID, a.Name, a.Model, a.Type, a.Description, a.Version, a.MimeType,
		a.CreatedBy, formatTime(a.CreatedAt), formatTime(a.LastModifiedAt),
		formatBool(a.Derived), derivedFrom, a.Content)
	if err != nil {
		return errors.Wrapf(err, "insert artifact %s", a.UUID)
	}

	for _, name := range a.PropertyNames() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO properties (artifact_uuid, name, value) VALUES (?, ?, ?)`,
			a.UUID, name, a.Properties[name]); err != nil {
			return errors.Wrapf(err, "insert property %s", name)
		}
	}

	if err := insertClassifications(ctx, tx, a.UUID, a.Classifiers, 0); err != nil {
		return err
	}
	if err := insertClassifications(ctx, tx, a.UUID, normalized, 1); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fts_content (uuid, name, content) VALUES (?, ?, ?)`,
		a.UUID, a.Name, a.Content); err != nil {
		return errors.Wrap(err, "insert full-text entry")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fts_trigram (uuid, name, content) VALUES (?, ?, ?)`,
		a.UUID, a.Name, a.Content); err != nil {
		return errors.Wrap(err, "insert trigram entry")
	}

	if err := insertRelationships(ctx, tx, a); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit artifact")
	}
	return nil
}

// SaveRelationships replaces only the relationships of an already stored
// artifact. Used after deferred targets have been resolved.
func (s *Store) SaveRelationships(ctx context.Context, a *model.Artifact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := deleteStatements(ctx, tx, artifactChildDeletes, a.UUID); err != nil {
		return err
	}
	if err := insertRelationships(ctx, tx, a); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit relationships")
	}
	return nil
}

func insertClassifications(ctx context.Context, tx *sql.Tx, uuid string, uris []string, normalized int) error {
	seen := make(map[string]bool, len(uris))
	for _, uri := range uris {
		if seen[uri] {
			continue
		}
		seen[uri] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO classifications (artifact_uuid, uri, normalized) VALUES (?, ?, ?)`,
			uuid, uri, normalized); err != nil {
			return errors.Wrapf(err, "insert classification %s", uri)
		}
	}
	return nil
}

func insertRelationships(ctx context.Context, tx *sql.Tx, a *model.Artifact) error {
	for pos, rel := range a.Relationships {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO relationships (source_uuid, name, generic, position) VALUES (?, ?, ?, ?)`,
			a.UUID, rel.Name, rel.Generic, pos)
		if err != nil {
			return errors.Wrapf(err, "insert relationship %s", rel.Name)
		}
		relID, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "relationship id")
		}
		if err := insertAttributes(ctx, tx, "relationship_attributes", "relationship_id", relID, rel.Attributes); err != nil {
			return err
		}

		for tpos, t := range rel.ResolvedTargets() {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO targets (relationship_id, target_uuid, target_type, position) VALUES (?, ?, ?, ?)`,
				relID, t.UUID, t.Type, tpos)
			if err != nil {
				return errors.Wrapf(err, "insert target %s", t.UUID)
			}
			targetID, err := res.LastInsertId()
			if err != nil {
				return errors.Wrap(err, "target id")
			}
			if err := insertAttributes(ctx, tx, "target_attributes", "target_id", targetID, t.Attributes); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertAttributes(ctx context.Context, tx *sql.Tx, table, column string, id int64, attrs map[string]string) error {
	for name, value := range attrs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+table+" ("+column+", name, value) VALUES (?, ?, ?)",
			id, name, value); err != nil {
			return errors.Wrapf(err, "insert %s %s", table, name)
		}
	}
	return nil
}

// DeleteArtifact removes an artifact and everything it owns. Relationships
// from other artifacts that target it are left in place.
func (s *Store) DeleteArtifact(ctx context.Context, uuid string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts WHERE uuid = ?`, uuid).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "look up artifact")
	}
	if exists == 0 {
		return errors.Wrapf(ErrArtifactNotFound, "%s", uuid)
	}

	if err := deleteStatements(ctx, tx, artifactDeletes, uuid); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteDerivation removes a primary artifact together with every artifact
// derived from it, and returns how many artifacts were removed.
func (s *Store) DeleteDerivation(ctx context.Context, primaryUUID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT uuid FROM artifacts WHERE uuid = ? OR derived_from = ?`, primaryUUID, primaryUUID)
	if err != nil {
		return 0, errors.Wrap(err, "find derivation")
	}
	uuids, err := sqlutil.ScanStrings(rows)
	if err != nil {
		return 0, errors.Wrap(err, "scan derivation")
	}
	if len(uuids) == 0 {
		return 0, errors.Wrapf(ErrArtifactNotFound, "%s", primaryUUID)
	}

	for _, id := range uuids {
		if err := deleteStatements(ctx, tx, artifactDeletes, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	s.log.Debugw("deleted derivation", "primary", primaryUUID, "artifacts", len(uuids))
	return len(uuids), nil
}

// Derivation loads the artifact primaryUUID and every artifact derived from
// it, in UUID order. An unknown UUID yields an empty result.
func (s *Store) Derivation(ctx context.Context, primaryUUID string) ([]*model.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid FROM artifacts WHERE uuid = ? OR derived_from = ? ORDER BY uuid`, primaryUUID, primaryUUID)
	if err != nil {
		return nil, errors.Wrap(err, "find derivation")
	}
	uuids, err := sqlutil.ScanStrings(rows)
	if err != nil {
		return nil, errors.Wrap(err, "scan derivation")
	}

	out := make([]*model.Artifact, 0, len(uuids))
	for _, id := range uuids {
		a, err := s.GetArtifact(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// PrimariesByProperty returns the UUIDs of primary (non-derived) artifacts
// whose property name equals value, in UUID order.
func (s *Store) PrimariesByProperty(ctx context.Context, name, value string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.uuid FROM artifacts a
		JOIN properties p ON p.artifact_uuid = a.uuid
		WHERE p.name = ? AND p.value = ? AND a.derived = 'false'
		ORDER BY a.uuid`, name, value)
	if err != nil {
		return nil, errors.Wrap(err, "find artifacts by property")
	}
	return sqlutil.ScanStrings(rows)
}

// GetArtifact loads the full artifact with the given UUID.
func (s *Store) GetArtifact(ctx context.Context, uuid string) (*model.Artifact, error) {
	a := &model.Artifact{}
	var createdAt, modifiedAt, derived string
	var derivedFrom sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT uuid, name, model, type, description, version, mime_type, created_by,
			created_at, last_modified_at, derived, derived_from, content
		FROM artifacts WHERE uuid = ?`, uuid).Scan(
		&a.UUID, &a.Name, &a.Model, &a.Type, &a.Description, &a.Version, &a.MimeType, &a.CreatedBy,
		&createdAt, &modifiedAt, &derived, &derivedFrom, &a.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithHint(errors.Wrapf(ErrArtifactNotFound, "%s", uuid),
			"Run a query to list the UUIDs in the catalog.")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load artifact %s", uuid)
	}
	a.CreatedAt = parseTime(createdAt)
	a.LastModifiedAt = parseTime(modifiedAt)
	a.Derived = derived == "true"
	a.DerivedFrom = derivedFrom.String

	props, err := s.nameValues(ctx, `SELECT name, value FROM properties WHERE artifact_uuid = ? ORDER BY name`, uuid)
	if err != nil {
		return nil, errors.Wrap(err, "load properties")
	}
	if len(props) > 0 {
		a.Properties = props
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT uri FROM classifications WHERE artifact_uuid = ? AND normalized = 0 ORDER BY uri`, uuid)
	if err != nil {
		return nil, errors.Wrap(err, "load classifications")
	}
	a.Classifiers, err = sqlutil.ScanStrings(rows)
	if err != nil {
		return nil, errors.Wrap(err, "scan classifications")
	}

	if a.Relationships, err = s.loadRelationships(ctx, uuid); err != nil {
		return nil, err
	}
	return a, nil
}

type relationshipRow struct {
	id  int64
	rel *model.Relationship
}

func (s *Store) loadRelationships(ctx context.Context, uuid string) ([]*model.Relationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, generic FROM relationships WHERE source_uuid = ? ORDER BY position, id`, uuid)
	if err != nil {
		return nil, errors.Wrap(err, "load relationships")
	}
	relRows, err := sqlutil.ScanRows(rows, func(r *sql.Rows) (relationshipRow, error) {
		row := relationshipRow{rel: &model.Relationship{}}
		err := r.Scan(&row.id, &row.rel.Name, &row.rel.Generic)
		return row, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan relationships")
	}

	out := make([]*model.Relationship, 0, len(relRows))
	for _, row := range relRows {
		attrs, err := s.nameValues(ctx,
			`SELECT name, value FROM relationship_attributes WHERE relationship_id = ? ORDER BY name`, row.id)
		if err != nil {
			return nil, errors.Wrap(err, "load relationship attributes")
		}
		if len(attrs) > 0 {
			row.rel.Attributes = attrs
		}

		targets, err := s.loadTargets(ctx, row.id)
		if err != nil {
			return nil, err
		}
		row.rel.Targets = targets
		out = append(out, row.rel)
	}
	return out, nil
}

type targetRow struct {
	id     int64
	target *model.Target
}

func (s *Store) loadTargets(ctx context.Context, relationshipID int64) ([]*model.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, target_uuid, target_type FROM targets WHERE relationship_id = ? ORDER BY position, id`, relationshipID)
	if err != nil {
		return nil, errors.Wrap(err, "load targets")
	}
	targetRows, err := sqlutil.ScanRows(rows, func(r *sql.Rows) (targetRow, error) {
		row := targetRow{target: &model.Target{}}
		err := r.Scan(&row.id, &row.target.UUID, &row.target.Type)
		return row, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan targets")
	}

	out := make([]*model.Target, 0, len(targetRows))
	for _, row := range targetRows {
		attrs, err := s.nameValues(ctx,
			`SELECT name, value FROM target_attributes WHERE target_id = ? ORDER BY name`, row.id)
		if err != nil {
			return nil, errors.Wrap(err, "load target attributes")
		}
		if len(attrs) > 0 {
			row.target.Attributes = attrs
		}
		out = append(out, row.target)
	}
	return out, nil
}

func (s *Store) nameValues(ctx context.Context, query string, arg any) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	pairs, err := sqlutil.ScanRows(rows, func(r *sql.Rows) ([2]string, error) {
		var p [2]string
		err := r.Scan(&p[0], &p[1])
		return p, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p[0]] = p[1]
	}
	return out, nil
}

// ArtifactsByUUID loads the summaries of the given artifacts, in UUID order.
// Unknown UUIDs are skipped.
func (s *Store) ArtifactsByUUID(ctx context.Context, uuids []string) ([]model.ArtifactSummary, error) {
	placeholders, args := sqlutil.InClauseArgs(uuids)
	rows, err := s.db.QueryContext(ctx, `
		SELECT uuid, name, model, type, description, created_by, created_at, last_modified_at, derived
		FROM artifacts WHERE uuid IN (`+placeholders+`) ORDER BY uuid`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "load artifacts")
	}
	items, err := sqlutil.ScanRows(rows, func(r *sql.Rows) (model.ArtifactSummary, error) {
		return scanSummary(r)
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan artifacts")
	}
	return items, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
