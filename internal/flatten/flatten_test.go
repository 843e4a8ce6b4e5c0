package flatten

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		wantKeys []string
		want     map[string]any
	}{
		{
			name:     "scalars keep field names",
			input:    Record{{"id", 1}, {"name", "alice"}, {"active", true}},
			wantKeys: []string{"id", "name", "active"},
			want:     map[string]any{"id": 1, "name": "alice", "active": true},
		},
		{
			name:     "nested object uses dotted paths",
			input:    Record{{"a", Record{{"b", 1}, {"c", 2}}}},
			wantKeys: []string{"a.b", "a.c"},
			want:     map[string]any{"a.b": 1, "a.c": 2},
		},
		{
			name:     "nested map is walked in sorted order",
			input:    map[string]any{"a": map[string]any{"c": 2, "b": 1}},
			wantKeys: []string{"a.b", "a.c"},
			want:     map[string]any{"a.b": 1, "a.c": 2},
		},
		{
			name:     "arrays use bracketed indices",
			input:    Record{{"tags", []any{"x", "y"}}},
			wantKeys: []string{"tags[0]", "tags[1]"},
			want:     map[string]any{"tags[0]": "x", "tags[1]": "y"},
		},
		{
			name: "array of records mixes indices and dots",
			input: Record{{"items", []any{
				Record{{"sku", "A"}},
				Record{{"sku", "B"}},
			}}},
			wantKeys: []string{"items[0].sku", "items[1].sku"},
			want:     map[string]any{"items[0].sku": "A", "items[1].sku": "B"},
		},
		{
			name:     "nil leaf is carried as explicit nil",
			input:    Record{{"a", nil}, {"b", Record{{"c", nil}}}},
			wantKeys: []string{"a", "b.c"},
			want:     map[string]any{"a": nil, "b.c": nil},
		},
		{
			name:     "empty containers become nil entries",
			input:    Record{{"obj", Record{}}, {"arr", []any{}}},
			wantKeys: []string{"obj", "arr"},
			want:     map[string]any{"obj": nil, "arr": nil},
		},
		{
			name:     "nil root is empty",
			input:    nil,
			wantKeys: []string{},
			want:     map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Flatten(tt.input)
			assert.Equal(t, tt.wantKeys, got.Keys())
			assert.Equal(t, tt.want, got.Map())
		})
	}
}

func TestFlatten_IdempotentOnFlatInput(t *testing.T) {
	row := Record{{"x", 1}, {"y", "two"}, {"z", nil}}

	once := Flatten(row)
	twice := Flatten(once)

	assert.Equal(t, once.Keys(), twice.Keys())
	assert.Equal(t, once.Map(), twice.Map())
}

func TestFlatten_IdempotentWithDottedKeys(t *testing.T) {
	once := Flatten(Record{{"a", Record{{"b", 1}}}})
	twice := Flatten(once)

	assert.Equal(t, []string{"a.b"}, twice.Keys())
	assert.Equal(t, once.Map(), twice.Map())
}

func TestFlatten_DoesNotMutateInput(t *testing.T) {
	inner := map[string]any{"b": 1}
	input := map[string]any{"a": inner}

	_ = Flatten(input)

	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}}, input)
}

func TestRow_MarshalJSON(t *testing.T) {
	row := Flatten(Record{{"z", 1}, {"a", Record{{"b", "<tag>"}}}})

	data, err := row.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a.b":"<tag>"}`, string(data))
}

func TestRecord_MarshalJSON(t *testing.T) {
	rec := Record{{"b", 2}, {"a", []any{1, "x"}}}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2,"a":[1,"x"]}`, string(data))
}

func TestExplode(t *testing.T) {
	t.Run("plain row is a single sub-row", func(t *testing.T) {
		rows := Explode(Record{{"a", 1}, {"b", Record{{"c", 2}}}})
		require.Len(t, rows, 1)
		assert.Equal(t, []string{"a", "b.c"}, rows[0].Keys())
	})

	t.Run("record array fans out sharing parent fields", func(t *testing.T) {
		rows := Explode(Record{
			{"order", 7},
			{"items", []any{
				Record{{"sku", "A"}, {"qty", 1}},
				Record{{"sku", "B"}, {"qty", 2}},
			}},
			{"status", "paid"},
		})
		require.Len(t, rows, 2)
		assert.Equal(t, map[string]any{"order": 7, "items.sku": "A", "items.qty": 1, "status": "paid"}, rows[0].Map())
		assert.Equal(t, map[string]any{"order": 7, "items.sku": "B", "items.qty": 2, "status": "paid"}, rows[1].Map())
		assert.Equal(t, []string{"order", "items.sku", "items.qty", "status"}, rows[0].Keys())
	})

	t.Run("two record arrays combine as cross product", func(t *testing.T) {
		rows := Explode(Record{
			{"a", []any{Record{{"x", 1}}, Record{{"x", 2}}}},
			{"b", []any{Record{{"y", "p"}}, Record{{"y", "q"}}}},
		})
		require.Len(t, rows, 4)
		var pairs [][2]any
		for _, r := range rows {
			x, _ := r.Get("a.x")
			y, _ := r.Get("b.y")
			pairs = append(pairs, [2]any{x, y})
		}
		assert.Equal(t, [][2]any{{1, "p"}, {1, "q"}, {2, "p"}, {2, "q"}}, pairs)
	})

	t.Run("nested record arrays explode recursively", func(t *testing.T) {
		rows := Explode(Record{
			{"id", 1},
			{"outer", []any{
				Record{{"name", "o1"}, {"inner", []any{Record{{"v", 1}}, Record{{"v", 2}}}}},
			}},
		})
		require.Len(t, rows, 2)
		assert.Equal(t, map[string]any{"id": 1, "outer.name": "o1", "outer.inner.v": 1}, rows[0].Map())
		assert.Equal(t, map[string]any{"id": 1, "outer.name": "o1", "outer.inner.v": 2}, rows[1].Map())
	})

	t.Run("scalar arrays stay indexed", func(t *testing.T) {
		rows := Explode(Record{{"tags", []any{"x", "y"}}})
		require.Len(t, rows, 1)
		assert.Equal(t, []string{"tags[0]", "tags[1]"}, rows[0].Keys())
	})

	t.Run("empty record array keeps parent row", func(t *testing.T) {
		rows := Explode(Record{{"id", 1}, {"items", []any{}}})
		require.Len(t, rows, 1)
		assert.Equal(t, map[string]any{"id": 1, "items": nil}, rows[0].Map())
	})

	t.Run("root array of records", func(t *testing.T) {
		rows := Explode([]any{Record{{"a", 1}}, Record{{"a", 2}}})
		require.Len(t, rows, 2)
		v, _ := rows[1].Get("a")
		assert.Equal(t, 2, v)
	})

	t.Run("nil row yields one empty sub-row", func(t *testing.T) {
		rows := Explode(nil)
		require.Len(t, rows, 1)
		assert.Equal(t, 0, rows[0].Len())
	})
}
