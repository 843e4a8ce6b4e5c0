package flatten

import "strconv"

// Flatten converts v into a flat row. Every reachable leaf becomes one entry
// keyed by its path. A nil value, or an empty object or array below the root,
// is kept as an explicit nil entry so column sets stay stable across rows.
// A nil root yields an empty row; a scalar root is stored under "".
func Flatten(v any) *Row {
	row := NewRow()
	walk(row, "", v)
	return row
}

func walk(row *Row, prefix string, v any) {
	if fields, ok := objectFields(v); ok {
		if len(fields) == 0 {
			setEmpty(row, prefix)
			return
		}
		for _, f := range fields {
			walk(row, joinPath(prefix, f.Name), f.Value)
		}
		return
	}

	if items, ok := arrayItems(v); ok {
		if len(items) == 0 {
			setEmpty(row, prefix)
			return
		}
		for i, item := range items {
			walk(row, indexPath(prefix, i), item)
		}
		return
	}

	if flat, ok := v.(*Row); ok {
		if flat == nil {
			setEmpty(row, prefix)
			return
		}
		for _, k := range flat.keys {
			row.Set(joinPath(prefix, k), flat.values[k])
		}
		return
	}

	if v == nil && prefix == "" {
		return
	}
	row.Set(prefix, v)
}

// Explode flattens v for tabular display. Fields holding arrays of records
// fan out into one row per element, each carrying the parent's other fields.
// Several such fields in one object combine as a cross product. Arrays of
// scalars stay in the row as indexed keys.
func Explode(v any) []*Row {
	return explode("", v)
}

func explode(prefix string, v any) []*Row {
	fields, ok := objectFields(v)
	if !ok {
		if items, isArr := arrayItems(v); isArr && isRecordArray(items) {
			return explodeItems(prefix, items)
		}
		row := NewRow()
		walk(row, prefix, v)
		return []*Row{row}
	}

	rows := []*Row{NewRow()}
	if len(fields) == 0 {
		setEmpty(rows[0], prefix)
		return rows
	}

	for _, f := range fields {
		path := joinPath(prefix, f.Name)

		if items, isArr := arrayItems(f.Value); isArr && isRecordArray(items) {
			rows = cross(rows, explodeItems(path, items))
			continue
		}

		if nested, isObj := objectFields(f.Value); isObj && len(nested) > 0 {
			rows = cross(rows, explode(path, f.Value))
			continue
		}

		for _, r := range rows {
			walk(r, path, f.Value)
		}
	}
	return rows
}

// explodeItems explodes each element of a record array under prefix. Stray
// non-record elements keep their index in the key.
func explodeItems(prefix string, items []any) []*Row {
	var out []*Row
	for i, item := range items {
		if _, isObj := objectFields(item); isObj {
			out = append(out, explode(prefix, item)...)
			continue
		}
		row := NewRow()
		walk(row, indexPath(prefix, i), item)
		out = append(out, row)
	}
	return out
}

// cross returns every combination of a row from base merged with a row from subs.
func cross(base, subs []*Row) []*Row {
	if len(subs) == 0 {
		return base
	}
	if len(subs) == 1 {
		for _, b := range base {
			b.merge(subs[0])
		}
		return base
	}
	out := make([]*Row, 0, len(base)*len(subs))
	for _, b := range base {
		for _, s := range subs {
			c := b.Clone()
			c.merge(s)
			out = append(out, c)
		}
	}
	return out
}

func isRecordArray(items []any) bool {
	for _, item := range items {
		if _, ok := objectFields(item); ok {
			return true
		}
	}
	return false
}

// objectFields returns the ordered fields of an object value.
func objectFields(v any) ([]Field, bool) {
	switch t := v.(type) {
	case Record:
		return t, true
	case map[string]any:
		return FromMap(t), true
	}
	return nil, false
}

// arrayItems returns the elements of an array value.
func arrayItems(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []Record:
		items := make([]any, len(t))
		for i, r := range t {
			items[i] = r
		}
		return items, true
	case []map[string]any:
		items := make([]any, len(t))
		for i, m := range t {
			items[i] = m
		}
		return items, true
	}
	return nil, false
}

func setEmpty(row *Row, prefix string) {
	if prefix != "" {
		row.Set(prefix, nil)
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func indexPath(prefix string, i int) string {
	return prefix + "[" + strconv.Itoa(i) + "]"
}
