// Package migrations applies the embedded PostgreSQL and ClickHouse schema
// files. Both runners record applied files in a schema_migrations table and
// skip them on later runs.
package migrations

import (
	"io/fs"
	"sort"
	"strings"
)

// migration is one embedded SQL file.
type migration struct {
	Name string
	SQL  string
}

// loadMigrations reads the non-empty .sql files of dir in lexical order.
func loadMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+entry.Name())
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, migration{Name: entry.Name(), SQL: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// splitStatements splits a migration into single statements for drivers
// without multi-statement Exec. Semicolons inside single-quoted literals and
// "--" line comments are not separators; comments are dropped.
func splitStatements(sql string) []string {
	var (
		stmts    []string
		cur      strings.Builder
		inString bool
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case ch == '\'':
			// '' inside a literal toggles twice and stays in the string.
			inString = !inString
			cur.WriteByte(ch)
		case inString:
			cur.WriteByte(ch)
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			cur.WriteByte('\n')
		case ch == ';':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return stmts
}
