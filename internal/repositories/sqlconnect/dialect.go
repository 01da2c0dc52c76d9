package sqlconnect

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect hides the SQL differences between the supported databases.
type Dialect struct {
	Name       string
	DriverName string
	numbered   bool
}

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return Dialect{Name: "mysql", DriverName: "mysql"}, nil
	case "sqlite":
		return Dialect{Name: "sqlite", DriverName: "sqlite"}, nil
	case "postgres":
		return Dialect{Name: "postgres", DriverName: "pgx", numbered: true}, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// Rebind rewrites ? placeholders into $n for drivers that need numbered ones.
// Queries must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Upsert returns the clause that turns an INSERT into an update of cols when
// the row identified by keys already exists.
func (d Dialect) Upsert(keys []string, cols []string) string {
	sets := make([]string, 0, len(cols))
	if d.Name == "mysql" {
		for _, c := range cols {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	for _, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(sets, ", "))
}

// InsertIgnore returns the INSERT prefix and suffix that make a duplicate key a no-op.
func (d Dialect) InsertIgnore() (prefix, suffix string) {
	if d.Name == "mysql" {
		return "INSERT IGNORE INTO", ""
	}
	return "INSERT INTO", " ON CONFLICT DO NOTHING"
}
