package database

import (
	"context"
	"database/sql"
	_ "embed" // schema
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver
	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

// QueryTimeout is the maximum duration of a Postgres statement.
var QueryTimeout = 10 * time.Second

type pg struct {
	db *sql.DB
}

// PostgresOpen returns a new Postgres database connection and creates the missing tables.
func PostgresOpen(ctx context.Context, url string) (Client, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "could not ping database")
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "could not migrate database")
	}

	return &pg{db: db}, nil
}

// Save inserts or replaces the entry in database with the given model.
func (c *pg) Save(m model.Row) error {
	stamp(m)

	ctx, cancel := context.WithTimeout(context.Background(), QueryTimeout)
	defer cancel()

	var err error
	switch v := m.(type) {
	case *model.Note:
		_, err = c.db.ExecContext(ctx, `INSERT INTO notes (id, title, content, device_info, device_id, anonymous_user_id, created_at, updated_at, is_deleted)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, device_info = EXCLUDED.device_info,
device_id = EXCLUDED.device_id, anonymous_user_id = EXCLUDED.anonymous_user_id, created_at = EXCLUDED.created_at,
updated_at = EXCLUDED.updated_at, is_deleted = EXCLUDED.is_deleted`,
			v.ID, v.Title, v.Content, v.DeviceInfo, v.DeviceID, v.AnonymousUserID, v.CreatedAt, v.UpdatedAt, v.IsDeleted)
	case *model.Device:
		_, err = c.db.ExecContext(ctx, `INSERT INTO devices (device_id, device_name, device_type, anonymous_user_id, last_seen, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (device_id) DO UPDATE SET device_name = EXCLUDED.device_name, device_type = EXCLUDED.device_type,
anonymous_user_id = EXCLUDED.anonymous_user_id, last_seen = EXCLUDED.last_seen, created_at = EXCLUDED.created_at`,
			v.DeviceID, v.DeviceName, v.DeviceType, v.AnonymousUserID, v.LastSeen, v.CreatedAt)
	case *model.SyncStatus:
		_, err = c.db.ExecContext(ctx, `INSERT INTO sync_status (id, anonymous_user_id, device_id, last_sync, sync_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET anonymous_user_id = EXCLUDED.anonymous_user_id, device_id = EXCLUDED.device_id,
last_sync = EXCLUDED.last_sync, sync_count = EXCLUDED.sync_count, created_at = EXCLUDED.created_at, updated_at = EXCLUDED.updated_at`,
			v.ID, v.AnonymousUserID, v.DeviceID, v.LastSync, v.SyncCount, v.CreatedAt, v.UpdatedAt)
	default:
		return errors.Errorf("unsupported model %T", m)
	}

	return errors.Wrap(err, "could not save the model")
}

// Close the database.
func (c *pg) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is nil or a not found error.
func (c *pg) IsNotFound(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

const (
	noteColumns       = "id, title, content, device_info, device_id, anonymous_user_id, created_at, updated_at, is_deleted"
	deviceColumns     = "device_id, device_name, device_type, anonymous_user_id, last_seen, created_at"
	syncStatusColumns = "id, anonymous_user_id, device_id, last_sync, sync_count, created_at, updated_at"
)

// FindNote returns the note for the given id.
func (c *pg) FindNote(id string) (*model.Note, error) {
	notes, err := c.findNotes("SELECT "+noteColumns+" FROM notes WHERE id = $1", id)
	if err != nil {
		return nil, errors.Wrap(err, "find note by id")
	}
	if len(notes) == 0 {
		return nil, errors.Wrap(sql.ErrNoRows, "find note by id")
	}
	return notes[0], nil
}

// FindNotes returns all the notes matching the given query.
func (c *pg) FindNotes(query Query) ([]*model.Note, error) {
	stmt, args, err := selectStatement(model.TableNotes, noteColumns, query)
	if err != nil {
		return nil, err
	}

	notes, err := c.findNotes(stmt, args...)
	return notes, errors.Wrap(err, "could not find notes")
}

// FindDevice returns the device for the given device id.
func (c *pg) FindDevice(id string) (*model.Device, error) {
	devices, err := c.findDevices("SELECT "+deviceColumns+" FROM devices WHERE device_id = $1", id)
	if err != nil {
		return nil, errors.Wrap(err, "find device by id")
	}
	if len(devices) == 0 {
		return nil, errors.Wrap(sql.ErrNoRows, "find device by id")
	}
	return devices[0], nil
}

// FindDevices returns all the devices matching the given query.
func (c *pg) FindDevices(query Query) ([]*model.Device, error) {
	stmt, args, err := selectStatement(model.TableDevices, deviceColumns, query)
	if err != nil {
		return nil, err
	}

	devices, err := c.findDevices(stmt, args...)
	return devices, errors.Wrap(err, "could not find devices")
}

// FindSyncStatus returns the sync status for the given id.
func (c *pg) FindSyncStatus(id string) (*model.SyncStatus, error) {
	statuses, err := c.findSyncStatuses("SELECT "+syncStatusColumns+" FROM sync_status WHERE id = $1", id)
	if err != nil {
		return nil, errors.Wrap(err, "find sync status by id")
	}
	if len(statuses) == 0 {
		return nil, errors.Wrap(sql.ErrNoRows, "find sync status by id")
	}
	return statuses[0], nil
}

// FindSyncStatuses returns all the sync statuses matching the given query.
func (c *pg) FindSyncStatuses(query Query) ([]*model.SyncStatus, error) {
	stmt, args, err := selectStatement(model.TableSyncStatus, syncStatusColumns, query)
	if err != nil {
		return nil, err
	}

	statuses, err := c.findSyncStatuses(stmt, args...)
	return statuses, errors.Wrap(err, "could not find sync statuses")
}

//
// Scanners
//

func (c *pg) findNotes(stmt string, args ...any) ([]*model.Note, error) {
	ctx, cancel := context.WithTimeout(context.Background(), QueryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]*model.Note, 0)
	for rows.Next() {
		var n model.Note
		var created, updated time.Time
		err = rows.Scan(&n.ID, &n.Title, &n.Content, &n.DeviceInfo, &n.DeviceID, &n.AnonymousUserID, &created, &updated, &n.IsDeleted)
		if err != nil {
			return nil, err
		}
		n.SetCreatedAt(created.UTC())
		n.SetUpdatedAt(updated.UTC())
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

func (c *pg) findDevices(stmt string, args ...any) ([]*model.Device, error) {
	ctx, cancel := context.WithTimeout(context.Background(), QueryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := make([]*model.Device, 0)
	for rows.Next() {
		var d model.Device
		var seen, created time.Time
		err = rows.Scan(&d.DeviceID, &d.DeviceName, &d.DeviceType, &d.AnonymousUserID, &seen, &created)
		if err != nil {
			return nil, err
		}
		d.SetUpdatedAt(seen.UTC())
		d.SetCreatedAt(created.UTC())
		devices = append(devices, &d)
	}
	return devices, rows.Err()
}

func (c *pg) findSyncStatuses(stmt string, args ...any) ([]*model.SyncStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), QueryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make([]*model.SyncStatus, 0)
	for rows.Next() {
		var s model.SyncStatus
		var last sql.NullTime
		var created, updated time.Time
		err = rows.Scan(&s.ID, &s.AnonymousUserID, &s.DeviceID, &last, &s.SyncCount, &created, &updated)
		if err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time.UTC()
			s.LastSync = &t
		}
		s.SetCreatedAt(created.UTC())
		s.SetUpdatedAt(updated.UTC())
		statuses = append(statuses, &s)
	}
	return statuses, rows.Err()
}

// selectStatement builds a parameterized SELECT. Columns are checked against the table definition.
func selectStatement(table, columns string, query Query) (string, []any, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	sb.WriteString(columns)
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	for i, f := range query.Filters {
		if !HasColumn(table, f.Column) {
			return "", nil, errors.Errorf("unknown column %s on %s", f.Column, table)
		}

		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}

		if f.Value == "null" {
			op := "IS NULL"
			if f.Operator != libsupa.OperatorEq {
				op = "IS NOT NULL"
			}
			fmt.Fprintf(&sb, "%s %s", f.Column, op)
			continue
		}

		op := "="
		if f.Operator != libsupa.OperatorEq {
			op = "<>"
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, "%s::text %s $%d", f.Column, op, len(args))
	}

	if query.Order != "" {
		if !HasColumn(table, query.Order) {
			return "", nil, errors.Errorf("unknown column %s on %s", query.Order, table)
		}

		direction := "DESC"
		if query.Ascending {
			direction = "ASC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", query.Order, direction)
	}

	return sb.String(), args, nil
}
