package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/asdine/storm/v3"
	"github.com/mdouchement/notepad/internal/database"
	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/pkg/stormsql"
	"github.com/mdouchement/notepad/pkg/structs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// go run tools/console/main.go notepadd.db " SELECT count(*) FROM notes WHERE anonymous_user_id = 'anon-f2a98ab0' AND updated_at > '2024-02-16 20:52:55';  "

func main() {
	c := &cobra.Command{
		Use:   "console",
		Short: "SQL console for notepadd database",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			//
			//
			sc, err := stormsql.ParseSelect(args[1], resolve)
			if err != nil {
				return err
			}

			//
			//
			fmt.Println("Opening", args[0])
			db, err := storm.Open(args[0], database.StormCodec)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			//
			// Prepare request
			//

			query := db.Select(sc.Matcher)
			if sc.Skip > 0 {
				query.Skip(sc.Skip)
			}
			if sc.Limit > 0 {
				query.Limit(sc.Limit)
			}
			if len(sc.OrderBy) > 0 {
				query.OrderBy(sc.OrderBy...)
				if sc.OrderByReversed {
					query.Reverse()
				}
			}

			// Execute

			if sc.Count {
				return count(sc, query)
			}

			return list(sc, query)
		},
	}

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func row(table string) (model.Row, error) {
	switch table {
	case model.TableNotes:
		return &model.Note{}, nil
	case model.TableDevices:
		return &model.Device{}, nil
	case model.TableSyncStatus:
		return &model.SyncStatus{}, nil
	}
	return nil, errors.Errorf("unknown tablename: %s", table)
}

// resolve translates the column names of the REST API to the stored field names.
func resolve(table, column string) (string, error) {
	r, err := row(table)
	if err != nil {
		return "", err
	}

	columns, err := structs.Columns(r, "json")
	if err != nil {
		return "", err
	}

	field, ok := columns[column]
	if !ok {
		return "", errors.Errorf("unknown column %s on %s", column, table)
	}
	return field, nil
}

func count(sc *stormsql.SelectClause, query storm.Query) error {
	r, err := row(sc.Tablename)
	if err != nil {
		return err
	}

	n, err := query.Count(r)
	if err != nil {
		return errors.Wrap(err, "could not perform query")
	}

	fmt.Println("Count:", n)

	return nil
}

func list(sc *stormsql.SelectClause, query storm.Query) error {
	var records any
	switch sc.Tablename {
	case model.TableNotes:
		records = &[]*model.Note{}
	case model.TableDevices:
		records = &[]*model.Device{}
	case model.TableSyncStatus:
		records = &[]*model.SyncStatus{}
	default:
		return errors.Errorf("unknown tablename: %s", sc.Tablename)
	}

	err := query.Find(records)
	if err == storm.ErrNotFound {
		fmt.Println("[]")
		return nil
	}

	if err != nil {
		return errors.Wrap(err, "could not perform query")
	}

	jsondump(records, sc.SelectedFields)

	return nil
}

// jsondump prints the records, restricted to the selected fields when some are given.
func jsondump(v any, fields []string) {
	var out any = v

	if len(fields) > 0 {
		var rows []map[string]any
		switch records := v.(type) {
		case *[]*model.Note:
			for _, r := range *records {
				rows = append(rows, pick(r, fields))
			}
		case *[]*model.Device:
			for _, r := range *records {
				rows = append(rows, pick(r, fields))
			}
		case *[]*model.SyncStatus:
			for _, r := range *records {
				rows = append(rows, pick(r, fields))
			}
		}
		out = rows
	}

	d, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(d))
}

func pick(obj any, fields []string) map[string]any {
	m := map[string]any{}
	for _, f := range fields {
		m[f] = structs.GetField(obj, f)
	}
	return m
}
