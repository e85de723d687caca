// Package store persists annotation collections to SQLite for offline
// querying. The schema mirrors the annotation model: collections,
// tagsets, tags, tag properties, annotations with their ranges and
// property values.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forTEXT/catma-go/core/catma"
	cerrors "github.com/forTEXT/catma-go/core/errors"
	"github.com/forTEXT/catma-go/core/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	author      TEXT NOT NULL,
	publisher   TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	document_id TEXT NOT NULL,
	text_length INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tagsets (
	id            TEXT NOT NULL,
	collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	name          TEXT NOT NULL,
	version       TEXT NOT NULL,
	PRIMARY KEY (id, collection_id)
);
CREATE TABLE IF NOT EXISTS tags (
	id            TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	tagset_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	author        TEXT NOT NULL,
	color         INTEGER NOT NULL,
	version       TEXT NOT NULL,
	parent_id     TEXT,
	path          TEXT NOT NULL,
	PRIMARY KEY (id, collection_id)
);
CREATE TABLE IF NOT EXISTS tag_properties (
	id            TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	tag_id        TEXT NOT NULL,
	name          TEXT NOT NULL,
	value         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS annotations (
	id            TEXT NOT NULL,
	collection_id TEXT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
	tag_id        TEXT NOT NULL,
	PRIMARY KEY (id, collection_id)
);
CREATE TABLE IF NOT EXISTS ranges (
	annotation_id TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	start_offset  INTEGER NOT NULL,
	end_offset    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS annotation_properties (
	annotation_id TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	name          TEXT NOT NULL,
	value         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_annotations_tag ON annotations(collection_id, tag_id);
CREATE INDEX IF NOT EXISTS idx_ranges_annotation ON ranges(collection_id, annotation_id);
CREATE INDEX IF NOT EXISTS idx_tags_path ON tags(collection_id, path);
`

// Store is a SQLite backed collection store.
type Store struct {
	db *sql.DB
}

// Open opens the store at the given path, creating the schema if
// needed.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, cerrors.NewIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing store without write access. Read-only
// commands use it so they cannot create or alter a database by
// accident.
func OpenReadOnly(path string) (*Store, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, cerrors.NewIO("open", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CollectionInfo is the stored metadata of a collection.
type CollectionInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Publisher   string    `json:"publisher"`
	Description string    `json:"description"`
	DocumentID  string    `json:"document_id"`
	TextLength  int       `json:"text_length"`
	CreatedAt   time.Time `json:"created_at"`
	Annotations int       `json:"annotations"`
}

// AnnotationRow is one stored annotation with its tag and ranges.
type AnnotationRow struct {
	ID         string              `json:"id"`
	TagID      string              `json:"tag_id"`
	TagName    string              `json:"tag_name"`
	TagPath    string              `json:"tag_path"`
	Ranges     []catma.Range       `json:"ranges"`
	Properties map[string][]string `json:"properties,omitempty"`
}

// TagCount is the number of annotations per tag path.
type TagCount struct {
	TagPath string `json:"tag_path"`
	Count   int    `json:"count"`
}

// ImportCollection stores a collection with all its tagsets, tags and
// annotations in one transaction. The collection id is generated.
func (s *Store) ImportCollection(ctx context.Context, col *catma.Collection) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO collections (id, title, author, publisher, description, document_id, text_length, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, col.Title, col.Author, col.Publisher, col.Description,
		col.DocumentID.String(), col.TextLength, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("inserting collection: %w", err)
	}

	for _, ts := range col.Tagsets {
		if err := importTagset(ctx, tx, id, ts); err != nil {
			return "", err
		}
	}
	for _, anno := range col.Annotations {
		if err := importAnnotation(ctx, tx, id, anno); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

func importTagset(ctx context.Context, tx *sql.Tx, collectionID string, ts *catma.Tagset) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tagsets (id, collection_id, name, version) VALUES (?, ?, ?, ?)`,
		ts.UUID.String(), collectionID, ts.Name, ts.Version)
	if err != nil {
		return fmt.Errorf("inserting tagset %s: %w", ts.Name, err)
	}

	for _, tag := range ts.OrderedTags() {
		parentID := sql.NullString{}
		if tag.Parent != nil {
			parentID = sql.NullString{String: tag.Parent.UUID.String(), Valid: true}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tags (id, collection_id, tagset_id, name, author, color, version, parent_id, path)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tag.UUID.String(), collectionID, ts.UUID.String(),
			tag.Name, tag.Author, tag.Color, tag.Version, parentID, tag.Path())
		if err != nil {
			return fmt.Errorf("inserting tag %s: %w", tag.Name, err)
		}

		for _, name := range tag.PropertyNames() {
			prop := tag.Properties[name]
			for _, value := range prop.Values {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO tag_properties (id, collection_id, tag_id, name, value) VALUES (?, ?, ?, ?, ?)`,
					prop.UUID.String(), collectionID, tag.UUID.String(), prop.Name, value)
				if err != nil {
					return fmt.Errorf("inserting tag property %s: %w", prop.Name, err)
				}
			}
		}
	}
	return nil
}

func importAnnotation(ctx context.Context, tx *sql.Tx, collectionID string, anno *catma.Annotation) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO annotations (id, collection_id, tag_id) VALUES (?, ?, ?)`,
		anno.UUID.String(), collectionID, anno.Tag.UUID.String())
	if err != nil {
		return fmt.Errorf("inserting annotation: %w", err)
	}

	for _, r := range anno.Ranges {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ranges (annotation_id, collection_id, start_offset, end_offset) VALUES (?, ?, ?, ?)`,
			anno.UUID.String(), collectionID, r.Start, r.End)
		if err != nil {
			return fmt.Errorf("inserting range: %w", err)
		}
	}

	for _, name := range anno.PropertyNames() {
		for _, value := range anno.Properties[name] {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO annotation_properties (annotation_id, collection_id, name, value) VALUES (?, ?, ?, ?)`,
				anno.UUID.String(), collectionID, name, value)
			if err != nil {
				return fmt.Errorf("inserting annotation property %s: %w", name, err)
			}
		}
	}
	return nil
}

// Collections lists all stored collections, newest first.
func (s *Store) Collections(ctx context.Context) ([]CollectionInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.title, c.author, c.publisher, c.description, c.document_id, c.text_length, c.created_at,
		        (SELECT COUNT(*) FROM annotations a WHERE a.collection_id = c.id)
		 FROM collections c ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CollectionInfo
	for rows.Next() {
		info, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

// Collection returns the stored collection with the given id.
func (s *Store) Collection(ctx context.Context, id string) (*CollectionInfo, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT c.id, c.title, c.author, c.publisher, c.description, c.document_id, c.text_length, c.created_at,
		        (SELECT COUNT(*) FROM annotations a WHERE a.collection_id = c.id)
		 FROM collections c WHERE c.id = ?`, id)
	info, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, cerrors.NewNotFound("collection", id)
	}
	if err != nil {
		return nil, err
	}
	return &info, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(row scanner) (CollectionInfo, error) {
	var info CollectionInfo
	var createdAt string
	err := row.Scan(&info.ID, &info.Title, &info.Author, &info.Publisher,
		&info.Description, &info.DocumentID, &info.TextLength, &createdAt, &info.Annotations)
	if err != nil {
		return CollectionInfo{}, err
	}
	info.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return info, nil
}

// AnnotationsByTagPath returns all annotations of a collection whose
// tag path matches the given path, with their ranges and properties.
func (s *Store) AnnotationsByTagPath(ctx context.Context, collectionID, tagPath string) ([]AnnotationRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, t.id, t.name, t.path
		 FROM annotations a JOIN tags t ON t.id = a.tag_id AND t.collection_id = a.collection_id
		 WHERE a.collection_id = ? AND t.path = ?`, collectionID, tagPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AnnotationRow
	for rows.Next() {
		var anno AnnotationRow
		if err := rows.Scan(&anno.ID, &anno.TagID, &anno.TagName, &anno.TagPath); err != nil {
			return nil, err
		}
		result = append(result, anno)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if err := s.loadAnnotationDetails(ctx, collectionID, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) loadAnnotationDetails(ctx context.Context, collectionID string, anno *AnnotationRow) error {
	rangeRows, err := s.db.QueryContext(ctx,
		`SELECT start_offset, end_offset FROM ranges WHERE collection_id = ? AND annotation_id = ? ORDER BY start_offset, end_offset`,
		collectionID, anno.ID)
	if err != nil {
		return err
	}
	defer rangeRows.Close()
	for rangeRows.Next() {
		var r catma.Range
		if err := rangeRows.Scan(&r.Start, &r.End); err != nil {
			return err
		}
		anno.Ranges = append(anno.Ranges, r)
	}
	if err := rangeRows.Err(); err != nil {
		return err
	}

	propRows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM annotation_properties WHERE collection_id = ? AND annotation_id = ?`,
		collectionID, anno.ID)
	if err != nil {
		return err
	}
	defer propRows.Close()
	for propRows.Next() {
		var name, value string
		if err := propRows.Scan(&name, &value); err != nil {
			return err
		}
		if anno.Properties == nil {
			anno.Properties = make(map[string][]string)
		}
		anno.Properties[name] = append(anno.Properties[name], value)
	}
	return propRows.Err()
}

// TagCounts returns annotation counts per tag path for a collection,
// most frequent first.
func (s *Store) TagCounts(ctx context.Context, collectionID string) ([]TagCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.path, COUNT(*)
		 FROM annotations a JOIN tags t ON t.id = a.tag_id AND t.collection_id = a.collection_id
		 WHERE a.collection_id = ?
		 GROUP BY t.path ORDER BY COUNT(*) DESC, t.path`, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.TagPath, &tc.Count); err != nil {
			return nil, err
		}
		result = append(result, tc)
	}
	return result, rows.Err()
}

// AnnotationsInRange returns annotations of a collection overlapping
// the given character range.
func (s *Store) AnnotationsInRange(ctx context.Context, collectionID string, start, end int) ([]AnnotationRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT a.id, t.id, t.name, t.path
		 FROM annotations a
		 JOIN tags t ON t.id = a.tag_id AND t.collection_id = a.collection_id
		 JOIN ranges r ON r.annotation_id = a.id AND r.collection_id = a.collection_id
		 WHERE a.collection_id = ? AND r.start_offset < ? AND r.end_offset > ?`,
		collectionID, end, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AnnotationRow
	for rows.Next() {
		var anno AnnotationRow
		if err := rows.Scan(&anno.ID, &anno.TagID, &anno.TagName, &anno.TagPath); err != nil {
			return nil, err
		}
		result = append(result, anno)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if err := s.loadAnnotationDetails(ctx, collectionID, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}
