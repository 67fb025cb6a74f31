// Package store persists import results in PostgreSQL.
//
// Saving follows the same order the upload UI has always used: tags first,
// ignoring ones that already exist, then contacts, ignoring known emails,
// then the contact/tag links joined on email and tag name. Everything runs in
// one transaction.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/contacts/internal/importer"
)

const schema = `
CREATE TABLE IF NOT EXISTS tags (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contacts (
	id              BIGSERIAL PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	name            TEXT,
	alternate_names TEXT[],
	active          BOOLEAN NOT NULL DEFAULT true,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contact_tags (
	contact_id BIGINT NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
	tag_id     BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (contact_id, tag_id)
);`

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Store writes contacts, tags and their links.
type Store struct {
	db DB
}

// New returns a Store backed by db, usually a *pgxpool.Pool.
func New(db DB) *Store {
	return &Store{db: db}
}

// SaveResult reports what a save changed.
type SaveResult struct {
	TagsInserted     int64 `json:"tags_inserted"`
	ContactsInserted int64 `json:"contacts_inserted"`
	LinksInserted    int64 `json:"links_inserted"`
}

// StoredContact is a contact row as read back from the database.
type StoredContact struct {
	ID             int64    `json:"id"`
	Email          string   `json:"email"`
	Name           *string  `json:"name"`
	AlternateNames []string `json:"alternateNames"`
}

// ContactTag links a stored contact to a stored tag.
type ContactTag struct {
	ContactID int64
	TagID     int64
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// ActiveContacts returns the active contacts among emails, ordered by id.
// Unknown and deactivated emails are left out.
func (s *Store) ActiveContacts(ctx context.Context, emails []string) ([]StoredContact, error) {
	if len(emails) == 0 {
		return []StoredContact{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, email, name, alternate_names FROM contacts
		 WHERE active AND email = ANY($1) ORDER BY id`,
		emails)
	if err != nil {
		return nil, fmt.Errorf("query active contacts: %w", err)
	}

	contacts, err := pgx.CollectRows(rows, pgx.RowToStructByPos[StoredContact])
	if err != nil {
		return nil, fmt.Errorf("scan active contacts: %w", err)
	}
	return contacts, nil
}

// SaveImport stores tags and contacts from an import. Rows that already
// exist are left untouched; new links are added for every contact.
func (s *Store) SaveImport(ctx context.Context, contacts []importer.Contact, tags []string) (*SaveResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op once committed

	res := &SaveResult{}

	tag, err := tx.Exec(ctx,
		`INSERT INTO tags (name) SELECT unnest($1::text[]) ON CONFLICT (name) DO NOTHING`,
		tags)
	if err != nil {
		return nil, fmt.Errorf("insert tags: %w", err)
	}
	res.TagsInserted = tag.RowsAffected()

	tagIDs, err := lookupIDs(ctx, tx, `SELECT id, name FROM tags WHERE name = ANY($1)`, tags)
	if err != nil {
		return nil, fmt.Errorf("read tag ids: %w", err)
	}

	inserted, err := insertContacts(ctx, tx, contacts)
	if err != nil {
		return nil, err
	}
	res.ContactsInserted = inserted

	emails := make([]string, len(contacts))
	for i, c := range contacts {
		emails[i] = c.Email
	}
	contactIDs, err := lookupIDs(ctx, tx, `SELECT id, email FROM contacts WHERE email = ANY($1)`, emails)
	if err != nil {
		return nil, fmt.Errorf("read contact ids: %w", err)
	}

	links := Associate(contacts, contactIDs, tagIDs)
	if len(links) > 0 {
		contactCol := make([]int64, len(links))
		tagCol := make([]int64, len(links))
		for i, l := range links {
			contactCol[i], tagCol[i] = l.ContactID, l.TagID
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO contact_tags (contact_id, tag_id)
			 SELECT * FROM unnest($1::bigint[], $2::bigint[])
			 ON CONFLICT DO NOTHING`,
			contactCol, tagCol)
		if err != nil {
			return nil, fmt.Errorf("insert contact tags: %w", err)
		}
		res.LinksInserted = tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func insertContacts(ctx context.Context, tx pgx.Tx, contacts []importer.Contact) (int64, error) {
	if len(contacts) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range contacts {
		batch.Queue(
			`INSERT INTO contacts (email, name, alternate_names) VALUES ($1, $2, $3)
			 ON CONFLICT (email) DO NOTHING`,
			c.Email, c.Name, c.AlternateNames)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for _, c := range contacts {
		tag, err := br.Exec()
		if err != nil {
			return 0, fmt.Errorf("insert contact %s: %w", c.Email, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, br.Close()
}

// lookupIDs runs an (id, key) query and returns key -> id.
func lookupIDs(ctx context.Context, tx pgx.Tx, sql string, keys []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return ids, nil
	}

	rows, err := tx.Query(ctx, sql, keys)
	if err != nil {
		return nil, err
	}

	var (
		id  int64
		key string
	)
	_, err = pgx.ForEachRow(rows, []any{&id, &key}, func() error {
		ids[key] = id
		return nil
	})
	return ids, err
}

// Associate joins contacts to stored ids by email and tag name. Contacts or
// tags without a stored id are skipped, as is the empty tag.
func Associate(contacts []importer.Contact, contactIDs, tagIDs map[string]int64) []ContactTag {
	var links []ContactTag
	for _, c := range contacts {
		contactID, ok := contactIDs[c.Email]
		if !ok {
			continue
		}
		for _, name := range c.Tags {
			if name == "" {
				continue
			}
			if tagID, ok := tagIDs[name]; ok {
				links = append(links, ContactTag{ContactID: contactID, TagID: tagID})
			}
		}
	}
	return links
}
