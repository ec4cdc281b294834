package catalog

import (
	"context"
	"fmt"

	"github.com/vmunix/galleria/internal/gallery"
)

// Every Insert* call below is an idempotent upsert keyed on the natural
// key, queued for the writer without waiting. Junction rows are keyed by
// the gallery's (source, gallery_id), so the gallery row must be queued
// first.

func (s *Store) InsertSource(name string) error {
	return s.enqueueWrite(writeJob{stmts: nameStmts("source", name)})
}

func (s *Store) InsertType(name string) error {
	return s.enqueueWrite(writeJob{stmts: nameStmts("type", name)})
}

func (s *Store) InsertGallery(m *gallery.Metadata) error {
	return s.enqueueWrite(writeJob{stmts: galleryStmts(m)})
}

func (s *Store) InsertArtist(ref gallery.Ref, name string) error {
	return s.enqueueWrite(writeJob{stmts: linkStmts("artist", ref, name)})
}

func (s *Store) InsertCharacter(ref gallery.Ref, name string) error {
	return s.enqueueWrite(writeJob{stmts: linkStmts("character", ref, name)})
}

func (s *Store) InsertGroup(ref gallery.Ref, name string) error {
	return s.enqueueWrite(writeJob{stmts: linkStmts("group", ref, name)})
}

func (s *Store) InsertLanguage(ref gallery.Ref, name string) error {
	return s.enqueueWrite(writeJob{stmts: linkStmts("language", ref, name)})
}

func (s *Store) InsertSeries(ref gallery.Ref, name string) error {
	return s.enqueueWrite(writeJob{stmts: linkStmts("series", ref, name)})
}

func (s *Store) InsertTag(ref gallery.Ref, tag gallery.Tag) error {
	return s.enqueueWrite(writeJob{stmts: tagStmts(ref, tag)})
}

func (s *Store) InsertMediaID(ref gallery.Ref, mediaID int) error {
	return s.enqueueWrite(writeJob{stmts: []stmt{mediaIDStmt(ref, mediaID)}})
}

// SaveGallery writes the gallery row and every satellite record as one
// job and waits until it is committed.
func (s *Store) SaveGallery(ctx context.Context, m *gallery.Metadata) error {
	if !m.Ready() {
		return fmt.Errorf("save gallery %d: missing id or location", m.ID)
	}
	ref := m.Ref()
	stmts := galleryStmts(m)
	for _, link := range []struct {
		cat   string
		names []string
	}{
		{"artist", m.Artists},
		{"character", m.Characters},
		{"group", m.Groups},
		{"series", m.Series},
	} {
		for _, name := range link.names {
			stmts = append(stmts, linkStmts(link.cat, ref, name)...)
		}
	}
	if m.Language != "" {
		stmts = append(stmts, linkStmts("language", ref, m.Language)...)
	}
	for _, tag := range m.Tags {
		stmts = append(stmts, tagStmts(ref, tag)...)
	}
	if m.Source == gallery.SourceNhentai && m.MediaID > 0 {
		stmts = append(stmts, mediaIDStmt(ref, m.MediaID))
	}

	if err := s.submit(ctx, stmts); err != nil {
		return fmt.Errorf("save gallery %s/%d: %w", m.Source, m.ID, err)
	}
	return nil
}

func nameStmts(catName, name string) []stmt {
	cat := categories[catName]
	return []stmt{{
		query: fmt.Sprintf(`INSERT OR IGNORE INTO %s(%s) VALUES (?)`, quote(cat.table), quote(cat.nameCol)),
		args:  []any{normalizeName(name)},
	}}
}

func galleryStmts(m *gallery.Metadata) []stmt {
	stmts := nameStmts("source", m.Source.String())

	var typ any
	if t := normalizeName(m.Type); t != "" {
		stmts = append(stmts, nameStmts("type", t)...)
		typ = t
	}
	var uploaded any
	if !m.UploadDate.IsZero() {
		uploaded = m.UploadDate.Format("2006-01-02")
	}

	return append(stmts, stmt{
		query: `INSERT INTO "Galleries"(source, gallery_id, title, japanese_title, type, upload_date, pages, location)
VALUES ((SELECT source_id FROM "Sources" WHERE source_name = ?), ?, ?, ?,
        (SELECT type_id FROM "Types" WHERE type_name = ?), ?, ?, ?)
ON CONFLICT(source, gallery_id) DO NOTHING`,
		args: []any{
			normalizeName(m.Source.String()), m.ID, m.Title, m.JapaneseTitle,
			typ, uploaded, m.Pages, m.Location,
		},
	})
}

// galleryRef selects the surrogate id of (source, gallery_id).
const galleryRef = `SELECT g.gallery_database_id FROM "Galleries" g
JOIN "Sources" s ON s.source_id = g.source
WHERE s.source_name = ? AND g.gallery_id = ?`

func linkStmts(catName string, ref gallery.Ref, name string) []stmt {
	cat := categories[catName]
	name = normalizeName(name)
	return []stmt{
		{
			query: fmt.Sprintf(`INSERT OR IGNORE INTO %s(%s) VALUES (?)`, quote(cat.table), quote(cat.nameCol)),
			args:  []any{name},
		},
		{
			query: fmt.Sprintf(`INSERT OR IGNORE INTO %s(%s, gallery)
SELECT (SELECT %s FROM %s WHERE %s = ?), (%s)`,
				quote(cat.junction), quote(cat.linkCol),
				quote(cat.idCol), quote(cat.table), quote(cat.nameCol), galleryRef),
			args: []any{name, ref.Source.String(), ref.ID},
		},
	}
}

func tagStmts(ref gallery.Ref, tag gallery.Tag) []stmt {
	name := normalizeName(tag.Name)
	var sex any
	if tag.Sex != gallery.SexNone {
		sex = int(tag.Sex)
	}
	return []stmt{
		{
			query: `INSERT OR IGNORE INTO "Tags"(tag_name, tag_sex) VALUES (?, ?)`,
			args:  []any{name, sex},
		},
		{
			query: `INSERT OR IGNORE INTO "Tag_Gallery"(tag, gallery)
SELECT (SELECT tag_id FROM "Tags" WHERE tag_name = ? AND tag_sex IS ?), (` + galleryRef + `)`,
			args: []any{name, sex, ref.Source.String(), ref.ID},
		},
	}
}

func mediaIDStmt(ref gallery.Ref, mediaID int) stmt {
	return stmt{
		query: `INSERT OR IGNORE INTO "NhentaiMediaID_Gallery"(media_id, gallery)
SELECT ?, (` + galleryRef + `)`,
		args: []any{mediaID, ref.Source.String(), ref.ID},
	}
}
