package database

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/pkg/errors"
)

// Columns returns the known columns of the given table.
func Columns(table string) ([]string, bool) {
	switch table {
	case model.TableNotes:
		return []string{"id", "title", "content", "device_info", "device_id", "anonymous_user_id", "created_at", "updated_at", "is_deleted"}, true
	case model.TableDevices:
		return []string{"device_id", "device_name", "device_type", "anonymous_user_id", "last_seen", "created_at"}, true
	case model.TableSyncStatus:
		return []string{"id", "anonymous_user_id", "device_id", "last_sync", "sync_count", "created_at", "updated_at"}, true
	}
	return nil, false
}

// HasColumn returns true if the column exists in the given table.
func HasColumn(table, column string) bool {
	columns, _ := Columns(table)
	for _, c := range columns {
		if c == column {
			return true
		}
	}
	return false
}

// Match returns true if the row matches all the given filters.
func Match(row model.Row, filters []libsupa.Filter) bool {
	if len(filters) == 0 {
		return true
	}

	record := row.Record()
	for _, f := range filters {
		if !f.Match(record) {
			return false
		}
	}
	return true
}

// Sort sorts the rows on the given column.
func Sort[T model.Row](rows []T, column string, ascending bool) {
	if column == "" {
		return
	}

	records := make(map[any]map[string]any, len(rows))
	for _, row := range rows {
		records[row] = row.Record()
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a := records[rows[i]][column]
		b := records[rows[j]][column]
		if ascending {
			return less(a, b)
		}
		return less(b, a)
	})
}

// Patch applies the given column values on the row.
// Unknown columns and identifier changes are rejected.
func Patch(table string, row model.Row, patch map[string]any) error {
	id := row.GetID()

	record := row.Record()
	for column, value := range patch {
		if !HasColumn(table, column) {
			return errors.Errorf("unknown column %s on %s", column, table)
		}
		record[column] = value
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "could not serialize patched row")
	}
	if err = json.Unmarshal(payload, row); err != nil {
		return errors.Wrap(err, "could not parse patched row")
	}

	if row.GetID() != id {
		return errors.New("identifier cannot be changed")
	}
	return nil
}

// less orders nil first, then timestamps, numbers and strings.
func less(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			break
		}
		at, erra := time.Parse(time.RFC3339Nano, av)
		bt, errb := time.Parse(time.RFC3339Nano, bv)
		if erra == nil && errb == nil {
			return at.Before(bt)
		}
		return av < bv
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case bool:
		if bv, ok := b.(bool); ok {
			return !av && bv
		}
	}

	return fmt.Sprint(a) < fmt.Sprint(b)
}
