package store

import (
	"database/sql"
	"fmt"
)

// scanKeys collects a single-column key result set.
func scanKeys(rows *sql.Rows) ([]string, error) {
	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key failed: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key rows: %w", err)
	}
	return keys, nil
}
