package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vmunix/galleria/internal/gallery"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Query selects galleries. Join adds satellite name columns to each row:
// "" for none, a category or comma separated list, "*" for all, or "auto"
// for the categories the filter mentions.
type Query struct {
	Select []string
	Join   string
	Filter string
	Limit  int
	Offset int
}

// galleryColumns are the selectable Galleries columns.
var galleryColumns = []struct {
	name, expr string
}{
	{"id", "g.gallery_database_id"},
	{"gallery_id", "g.gallery_id"},
	{"title", "g.title"},
	{"japanese_title", "g.japanese_title"},
	{"upload_date", "g.upload_date"},
	{"pages", "g.pages"},
	{"location", "g.location"},
}

func columnExpr(name string) (string, bool) {
	for _, c := range galleryColumns {
		if c.name == name {
			return c.expr, true
		}
	}
	return "", false
}

// Build renders q as SQL.
func (q Query) Build(compareLike bool) (string, []any, error) {
	filter, err := ParseFilter(q.Filter)
	if err != nil {
		return "", nil, err
	}

	var cols []string
	sel := q.Select
	if len(sel) == 0 || (len(sel) == 1 && (sel[0] == "gallery" || sel[0] == "*")) {
		sel = nil
		for _, c := range galleryColumns {
			sel = append(sel, c.name)
		}
	}
	for _, name := range sel {
		expr, ok := columnExpr(strings.TrimSpace(name))
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		cols = append(cols, fmt.Sprintf("%s AS %s", expr, quote(strings.TrimSpace(name))))
	}

	joins, err := q.joinCategories(filter)
	if err != nil {
		return "", nil, err
	}
	var joinSQL []string
	for _, name := range joins {
		col, clause := joinClause(categories[name])
		cols = append(cols, col)
		joinSQL = append(joinSQL, clause)
	}

	var b strings.Builder
	b.WriteString("SELECT DISTINCT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(` FROM "Galleries" g`)
	for _, j := range joinSQL {
		b.WriteString(" ")
		b.WriteString(j)
	}

	var args []any
	if !filter.Empty() {
		comp := "="
		if compareLike {
			comp = " LIKE "
		}
		where, whereArgs := filter.where(comp)
		b.WriteString(" WHERE ")
		b.WriteString(where)
		args = append(args, whereArgs...)
	}
	b.WriteString(" ORDER BY g.gallery_database_id")
	if q.Limit > 0 {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, q.Limit, q.Offset)
	} else if q.Offset > 0 {
		b.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, q.Offset)
	}
	return b.String(), args, nil
}

func (q Query) joinCategories(f Filter) ([]string, error) {
	spec := strings.TrimSpace(strings.ToLower(q.Join))
	switch spec {
	case "":
		return nil, nil
	case "*":
		return categoryOrder, nil
	case "auto":
		var out []string
		for _, c := range f.Categories() {
			if c != "gallery" {
				out = append(out, c)
			}
		}
		return out, nil
	}
	var out []string
	for _, name := range strings.Split(spec, ",") {
		cat, err := lookupCategory(name)
		if err != nil {
			return nil, err
		}
		if cat.name == "gallery" {
			continue
		}
		out = append(out, cat.name)
	}
	return out, nil
}

// joinClause returns the selected column and LEFT JOIN for a category.
func joinClause(cat category) (string, string) {
	e := "e_" + cat.name
	col := fmt.Sprintf("%s.%s AS %s", e, quote(cat.nameCol), quote(cat.name))
	if cat.name == "tag" {
		col = fmt.Sprintf(`CASE %[1]s.tag_sex WHEN 0 THEN 'female:' || %[1]s.tag_name WHEN 1 THEN 'male:' || %[1]s.tag_name ELSE %[1]s.tag_name END AS "tag"`, e)
	}
	if cat.junction == "" {
		return col, fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = g.%s",
			quote(cat.table), e, e, quote(cat.idCol), quote(cat.linkCol))
	}
	j := "j_" + cat.name
	return col, fmt.Sprintf("LEFT JOIN %s %s ON %s.gallery = g.gallery_database_id LEFT JOIN %s %s ON %s.%s = %s.%s",
		quote(cat.junction), j, j, quote(cat.table), e, e, quote(cat.idCol), j, quote(cat.linkCol))
}

// Get runs q on the reader and delivers the rows to fn from the reader
// goroutine. Malformed queries fail immediately without calling fn.
func (s *Store) Get(q Query, fn func([]Row, error)) error {
	query, args, err := q.Build(s.opts.CompareLike)
	if err != nil {
		return err
	}
	return s.enqueueRead(readJob{query: query, args: args, fn: fn})
}

type result struct {
	rows []Row
	err  error
}

// Lookup runs q and waits for the rows.
func (s *Store) Lookup(ctx context.Context, q Query) ([]Row, error) {
	ch := make(chan result, 1)
	if err := s.Get(q, func(rows []Row, err error) { ch <- result{rows, err} }); err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.rows, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Exists reports whether the catalog already holds the gallery identified
// by (source, id).
func (s *Store) Exists(ctx context.Context, source gallery.Source, id int) (bool, error) {
	rows, err := s.Lookup(ctx, Query{
		Select: []string{"id"},
		Filter: fmt.Sprintf(`gallery:"%d" source:"%s"`, id, source),
		Limit:  1,
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *Store) query(query string, args []any) ([]Row, error) {
	rows, err := s.rdb.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", mapSQLiteError(err))
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
