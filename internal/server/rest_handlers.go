package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mdouchement/notepad/internal/database"
	"github.com/mdouchement/notepad/internal/model"
	"github.com/mdouchement/notepad/internal/resterror"
	"github.com/mdouchement/notepad/internal/server/hub"
	"github.com/mdouchement/notepad/pkg/libsupa"
	"github.com/pkg/errors"
)

// rest contains all table handlers.
type rest struct {
	db  database.Client
	hub *hub.Hub
}

///// Select
////
//

// Select returns the rows matching the filters given as query parameters.
func (h *rest) Select(c echo.Context) error {
	table, err := h.table(c)
	if err != nil {
		return err
	}

	query, err := h.query(c, table, true)
	if err != nil {
		return err
	}

	rows, err := h.find(table, query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rows)
}

///// Upsert
////
//

// Upsert inserts the given rows, existing ones are replaced when the merge-duplicates resolution is preferred.
func (h *rest) Upsert(c echo.Context) error {
	table, err := h.table(c)
	if err != nil {
		return err
	}

	rows, err := h.decode(c, table)
	if err != nil {
		return err
	}

	merge := preferred(c, "resolution=merge-duplicates")
	saved := make([]model.Row, 0, len(rows))

	for _, row := range rows {
		if table == model.TableNotes && row.(*model.Note).AnonymousUserID == "" {
			return resterror.NewWithCode(http.StatusBadRequest, resterror.CodeMissingScope, "anonymous_user_id is required")
		}

		var previous model.Row
		if row.GetID() != "" {
			found, err := h.findByID(table, row.GetID())
			switch {
			case err == nil:
				previous = found
			case !h.db.IsNotFound(err):
				return err
			}
		}

		if previous != nil {
			if !merge {
				return resterror.NewWithCode(http.StatusConflict, "23505", "duplicate key value violates unique constraint").
					WithDetails("Key already exists: " + row.GetID())
			}
			if scope(previous) != scope(row) {
				return resterror.NewWithCode(http.StatusForbidden, "42501", "row belongs to another scope")
			}
			if row.GetCreatedAt() == nil && previous.GetCreatedAt() != nil {
				row.SetCreatedAt(*previous.GetCreatedAt())
			}
		}

		if err = h.db.Save(row); err != nil {
			return err
		}
		saved = append(saved, row)

		if previous == nil {
			h.hub.Publish(c.Request().Context(), table, libsupa.EventTypeInsert, row.Record(), nil)
		} else {
			h.hub.Publish(c.Request().Context(), table, libsupa.EventTypeUpdate, row.Record(), previous.Record())
		}
	}

	if preferred(c, "return=representation") {
		return c.JSON(http.StatusCreated, saved)
	}
	return c.NoContent(http.StatusCreated)
}

///// Update
////
//

// Update patches the rows matching the filters given as query parameters.
func (h *rest) Update(c echo.Context) error {
	table, err := h.table(c)
	if err != nil {
		return err
	}

	query, err := h.query(c, table, false)
	if err != nil {
		return err
	}
	if len(query.Filters) == 0 {
		return resterror.NewWithCode(http.StatusBadRequest, resterror.CodeBadRequest, "UPDATE requires a WHERE clause")
	}

	patch := map[string]any{}
	if err = c.Bind(&patch); err != nil {
		return err
	}

	rows, err := h.find(table, query)
	if err != nil {
		return err
	}

	for _, row := range rows {
		old := row.Record()

		if err = database.Patch(table, row, patch); err != nil {
			return resterror.NewWithCode(http.StatusBadRequest, resterror.CodeUnknownColumn, err.Error())
		}

		if err = h.db.Save(row); err != nil {
			return err
		}

		h.hub.Publish(c.Request().Context(), table, libsupa.EventTypeUpdate, row.Record(), old)
	}

	if preferred(c, "return=representation") {
		return c.JSON(http.StatusOK, rows)
	}
	return c.NoContent(http.StatusNoContent)
}

//
//
//

func (h *rest) table(c echo.Context) (string, error) {
	table := c.Param("table")
	if _, ok := database.Columns(table); !ok {
		return "", resterror.NewWithCode(http.StatusNotFound, resterror.CodeUnknownTable, "Could not find the table public."+table+" in the schema cache").
			WithHint("Available tables: notes, devices, sync_status")
	}
	return table, nil
}

// query parses the PostgREST style parameters.
// Reads of notes must be scoped by an anonymous_user_id equality filter.
func (h *rest) query(c echo.Context, table string, read bool) (database.Query, error) {
	var query database.Query
	var scoped bool

	for key, values := range c.QueryParams() {
		switch key {
		case "select":
			continue
		case "order":
			if !read {
				continue
			}

			column, ascending, err := libsupa.ParseOrder(values[0])
			if err != nil {
				return query, resterror.NewWithCode(http.StatusBadRequest, resterror.CodeBadRequest, err.Error())
			}
			if !database.HasColumn(table, column) {
				return query, resterror.NewWithCode(http.StatusBadRequest, resterror.CodeUnknownColumn, "column "+table+"."+column+" does not exist")
			}
			query.Order = column
			query.Ascending = ascending
			continue
		}

		if !database.HasColumn(table, key) {
			return query, resterror.NewWithCode(http.StatusBadRequest, resterror.CodeUnknownColumn, "column "+table+"."+key+" does not exist")
		}

		for _, value := range values {
			filter, err := libsupa.ParseFilter(key, value)
			if err != nil {
				return query, resterror.NewWithCode(http.StatusBadRequest, resterror.CodeBadRequest, "failed to parse filter").
					WithDetails(err.Error())
			}

			if filter.Column == "anonymous_user_id" && filter.Operator == libsupa.OperatorEq && filter.Value != "" {
				scoped = true
			}
			query.Filters = append(query.Filters, filter)
		}
	}

	if table == model.TableNotes && !scoped {
		return query, resterror.NewWithCode(http.StatusBadRequest, resterror.CodeMissingScope, "anonymous_user_id filter is required")
	}

	return query, nil
}

func (h *rest) find(table string, query database.Query) ([]model.Row, error) {
	rows := []model.Row{}

	switch table {
	case model.TableNotes:
		notes, err := h.db.FindNotes(query)
		if err != nil {
			return nil, err
		}
		for _, n := range notes {
			rows = append(rows, n)
		}
	case model.TableDevices:
		devices, err := h.db.FindDevices(query)
		if err != nil {
			return nil, err
		}
		for _, d := range devices {
			rows = append(rows, d)
		}
	case model.TableSyncStatus:
		statuses, err := h.db.FindSyncStatuses(query)
		if err != nil {
			return nil, err
		}
		for _, s := range statuses {
			rows = append(rows, s)
		}
	}

	return rows, nil
}

func (h *rest) findByID(table, id string) (model.Row, error) {
	switch table {
	case model.TableNotes:
		return h.db.FindNote(id)
	case model.TableDevices:
		return h.db.FindDevice(id)
	case model.TableSyncStatus:
		return h.db.FindSyncStatus(id)
	}
	return nil, errors.Errorf("unknown table %s", table)
}

// decode reads a single row or an array of rows.
func (h *rest) decode(c echo.Context, table string) ([]model.Row, error) {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, errors.Wrap(err, "could not read body")
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, resterror.NewWithCode(http.StatusBadRequest, resterror.CodeEmptyBody, "Request body can't be empty")
	}
	if payload[0] != '[' {
		payload = append(append([]byte{'['}, payload...), ']')
	}

	var rows []model.Row
	switch table {
	case model.TableNotes:
		var notes []*model.Note
		err = json.Unmarshal(payload, &notes)
		for _, n := range notes {
			rows = append(rows, n)
		}
	case model.TableDevices:
		var devices []*model.Device
		err = json.Unmarshal(payload, &devices)
		for _, d := range devices {
			rows = append(rows, d)
		}
	case model.TableSyncStatus:
		var statuses []*model.SyncStatus
		err = json.Unmarshal(payload, &statuses)
		for _, s := range statuses {
			rows = append(rows, s)
		}
	}

	if err != nil {
		return nil, resterror.NewWithCode(http.StatusBadRequest, resterror.CodeBadRequest, "Could not parse request body").
			WithDetails(err.Error())
	}
	return rows, nil
}

func scope(row model.Row) any {
	return row.Record()["anonymous_user_id"]
}

func preferred(c echo.Context, preference string) bool {
	for _, header := range c.Request().Header.Values("Prefer") {
		for _, p := range strings.Split(header, ",") {
			if strings.TrimSpace(p) == preference {
				return true
			}
		}
	}
	return false
}
