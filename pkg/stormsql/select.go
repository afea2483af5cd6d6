package stormsql

import (
	"strconv"

	"github.com/araddon/dateparse"
	"github.com/asdine/storm/v3/q"
	"github.com/pkg/errors"
	"github.com/xwb1989/sqlparser"
)

type (
	// A SelectClause contains all the parsed SQL data.
	SelectClause struct {
		SelectedFields  []string
		Count           bool
		Tablename       string
		Matcher         q.Matcher
		Skip            int
		Limit           int
		OrderBy         []string
		OrderByReversed bool
	}

	// A Resolver returns the struct field name of the given column of table.
	Resolver func(table, column string) (string, error)

	parser struct {
		table   string
		resolve Resolver
	}
)

// Identity is a Resolver using the column names as field names.
func Identity(_, column string) (string, error) {
	return column, nil
}

// ParseSelect parses the given SELECT statement.
// Column names are translated to struct field names with resolve.
func ParseSelect(sql string, resolve Resolver) (*SelectClause, error) {
	if resolve == nil {
		resolve = Identity
	}

	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse SQL")
	}

	s, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, errors.New("not a select statement")
	}

	var sc SelectClause

	// FROM notes
	from, ok := s.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return nil, errors.New("unsupported from expression")
	}
	sc.Tablename = sqlparser.GetTableName(from.Expr).String()
	p := &parser{table: sc.Tablename, resolve: resolve}

	// SELECT * ...
	// SELECT title,updated_at ...
	for _, se := range s.SelectExprs {
		switch v := se.(type) {
		case *sqlparser.StarExpr:
			sc.SelectedFields = []string{}
		case *sqlparser.AliasedExpr:
			switch v := v.Expr.(type) {
			case *sqlparser.ColName:
				field, err := p.field(v)
				if err != nil {
					return nil, err
				}
				sc.SelectedFields = append(sc.SelectedFields, field)
			case *sqlparser.FuncExpr:
				sc.SelectedFields = []string{}
				sc.Count = v.Name.Lowered() == "count"
			}
		default:
			return nil, errors.New("unsupported select expression")
		}
	}

	// WHERE
	sc.Matcher = q.And()
	if s.Where != nil {
		sc.Matcher, err = p.where(s.Where.Expr)
		if err != nil {
			return nil, err
		}
	}

	// LIMIT 5
	// LIMIT 2,5
	if s.Limit != nil {
		if s.Limit.Offset != nil {
			if sc.Skip, err = integer(s.Limit.Offset); err != nil {
				return nil, err
			}
		}
		if sc.Limit, err = integer(s.Limit.Rowcount); err != nil {
			return nil, err
		}
	}

	// ORDER BY updated_at
	// ORDER BY updated_at DESC
	// ORDER BY updated_at DESC, created_at ASC     => All will be DESC due to storm limitation
	for _, ob := range s.OrderBy {
		if ob.Direction == sqlparser.DescScr {
			sc.OrderByReversed = true
		}

		col, ok := ob.Expr.(*sqlparser.ColName)
		if !ok {
			return nil, errors.New("unsupported order expression")
		}
		field, err := p.field(col)
		if err != nil {
			return nil, err
		}
		sc.OrderBy = append(sc.OrderBy, field)
	}

	return &sc, nil
}

func (p *parser) field(col *sqlparser.ColName) (string, error) {
	return p.resolve(p.table, col.Name.String())
}

func (p *parser) where(expr sqlparser.Expr) (q.Matcher, error) {
	switch v := expr.(type) {
	//
	//
	//
	case *sqlparser.ComparisonExpr:
		col, ok := v.Left.(*sqlparser.ColName)
		if !ok {
			return nil, errors.New("left operand must be a column")
		}
		field, err := p.field(col)
		if err != nil {
			return nil, err
		}

		// Parse value
		var value any
		switch sqlvalue := v.Right.(type) {
		case sqlparser.BoolVal:
			value = bool(sqlvalue)
		case sqlparser.ValTuple:
			var tuple []any
			for _, t := range sqlvalue {
				val, ok := t.(*sqlparser.SQLVal)
				if !ok {
					return nil, errors.New("unsupported tuple value")
				}
				parsed, err := parseSQLVal(val)
				if err != nil {
					return nil, err
				}
				tuple = append(tuple, parsed)
			}
			value = tuple
		case *sqlparser.SQLVal:
			if value, err = parseSQLVal(sqlvalue); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("unsupported value %s", sqlparser.String(v.Right))
		}

		// Parse operator
		switch v.Operator {
		case sqlparser.EqualStr:
			return q.Eq(field, value), nil
		case sqlparser.NotEqualStr:
			return q.Not(q.Eq(field, value)), nil
		case sqlparser.GreaterThanStr:
			return q.Gt(field, value), nil
		case sqlparser.GreaterEqualStr:
			return q.Gte(field, value), nil
		case sqlparser.InStr:
			return q.In(field, value), nil
		case sqlparser.LessThanStr:
			return q.Lt(field, value), nil
		case sqlparser.LessEqualStr:
			return q.Lte(field, value), nil
		case sqlparser.LikeStr:
			s, ok := value.(string)
			if !ok {
				return nil, errors.New("like expects a string pattern")
			}
			return q.Re(field, s), nil
		}
		return nil, errors.Errorf("unsupported operator %s", v.Operator)
		//
		//
		//
	case *sqlparser.IsExpr:
		col, ok := v.Expr.(*sqlparser.ColName)
		if !ok {
			return nil, errors.New("is expression expects a column")
		}
		field, err := p.field(col)
		if err != nil {
			return nil, err
		}

		switch v.Operator {
		case sqlparser.IsNullStr:
			return q.Eq(field, nil), nil
		case sqlparser.IsNotNullStr:
			return q.Not(q.Eq(field, nil)), nil
		case sqlparser.IsTrueStr:
			return q.Eq(field, true), nil
		case sqlparser.IsFalseStr:
			return q.Eq(field, false), nil
		}
		return nil, errors.Errorf("unsupported operator %s", v.Operator)
		//
		//
		//
	case *sqlparser.AndExpr:
		left, err := p.where(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.where(v.Right)
		if err != nil {
			return nil, err
		}
		return q.And(left, right), nil
		//
		//
		//
	case *sqlparser.OrExpr:
		left, err := p.where(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := p.where(v.Right)
		if err != nil {
			return nil, err
		}
		return q.Or(left, right), nil
		//
		//
		//
	case *sqlparser.ParenExpr:
		return p.where(v.Expr)
	}

	return nil, errors.Errorf("unsupported where expression %s", sqlparser.String(expr))
}

func integer(expr sqlparser.Expr) (int, error) {
	val, ok := expr.(*sqlparser.SQLVal)
	if !ok || val.Type != sqlparser.IntVal {
		return 0, errors.Errorf("expected an integer, got %s", sqlparser.String(expr))
	}
	return strconv.Atoi(string(val.Val))
}

func parseSQLVal(v *sqlparser.SQLVal) (value any, err error) {
	switch v.Type {
	case sqlparser.StrVal:
		value = string(v.Val)

		// Try to convert to time.Time if possible
		if t, err := dateparse.ParseAny(string(v.Val)); err == nil {
			value = t.UTC()
		}
	case sqlparser.IntVal:
		value, err = strconv.Atoi(string(v.Val))
	case sqlparser.FloatVal:
		value, err = strconv.ParseFloat(string(v.Val), 64)
	case sqlparser.HexNum:
		value, err = strconv.ParseInt(string(v.Val[2:]), 16, 64)
	case sqlparser.HexVal:
		value, err = v.HexDecode()
	case sqlparser.BitVal:
		value = len(v.Val) > 0 && v.Val[0] == '1'
	default:
		err = errors.New("unsupported value type")
	}

	return value, errors.Wrap(err, "could not parse value")
}
