package structs

import (
	"reflect"
	"strings"

	"github.com/oleiade/reflections"
	"github.com/pkg/errors"
)

// GetField returns the value of the provided obj field. obj can whether be a structure or pointer to structure.
func GetField(obj any, name string) any {
	v, err := reflections.GetField(obj, name)
	if err != nil {
		panic(err)
	}

	return v
}

// Columns returns the field names of obj indexed by the name given in the tag key (e.g. `json:"created_at"`).
// Embedded structs without tag are flattened, fields tagged with "-" are ignored.
func Columns(obj any, key string) (map[string]string, error) {
	tags, err := reflections.Tags(obj, key)
	if err != nil {
		return nil, errors.Wrap(err, "could not read tags")
	}

	columns := map[string]string{}
	for field, tag := range tags {
		name := strings.Split(tag, ",")[0]

		switch name {
		case "-":
			continue
		case "":
			kind, err := reflections.GetFieldKind(obj, field)
			if err != nil {
				return nil, errors.Wrapf(err, "could not read kind of %s", field)
			}
			if kind != reflect.Struct {
				columns[field] = field
				continue
			}

			embedded, err := Columns(GetField(obj, field), key)
			if err != nil {
				return nil, err
			}
			for column, f := range embedded {
				columns[column] = f
			}
		default:
			columns[name] = field
		}
	}

	return columns, nil
}
