package query

import (
	"fmt"
	"math"
	"math/big"

	"cloud.google.com/go/bigquery"
	"github.com/leapstack-labs/bqrun/internal/flatten"
)

// convertRow pairs values with the schema, keeping schema field order.
func convertRow(schema bigquery.Schema, values []bigquery.Value) flatten.Record {
	if len(schema) == 0 {
		rec := make(flatten.Record, len(values))
		for i, v := range values {
			rec[i] = flatten.Field{Name: fmt.Sprintf("f%d_", i), Value: normalize(nil, v)}
		}
		return rec
	}

	rec := make(flatten.Record, 0, len(schema))
	for i, field := range schema {
		var v bigquery.Value
		if i < len(values) {
			v = values[i]
		}
		rec = append(rec, flatten.Field{Name: field.Name, Value: convertValue(field, v)})
	}
	return rec
}

func convertValue(field *bigquery.FieldSchema, v bigquery.Value) any {
	if v == nil {
		return nil
	}
	if field.Repeated {
		items, ok := v.([]bigquery.Value)
		if !ok {
			return normalize(field, v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = convertSingle(field, item)
		}
		return out
	}
	return convertSingle(field, v)
}

func convertSingle(field *bigquery.FieldSchema, v bigquery.Value) any {
	if v == nil {
		return nil
	}
	if field.Type == bigquery.RecordFieldType {
		if nested, ok := v.([]bigquery.Value); ok {
			return convertRow(field.Schema, nested)
		}
	}
	return normalize(field, v)
}

// normalize turns client value types into values that render as JSON:
// numerics become their decimal strings and non-finite floats become strings.
func normalize(field *bigquery.FieldSchema, v bigquery.Value) any {
	switch t := v.(type) {
	case *big.Rat:
		if field != nil && field.Type == bigquery.BigNumericFieldType {
			return bigquery.BigNumericString(t)
		}
		return bigquery.NumericString(t)
	case float64:
		switch {
		case math.IsNaN(t):
			return "NaN"
		case math.IsInf(t, 1):
			return "Infinity"
		case math.IsInf(t, -1):
			return "-Infinity"
		}
		return t
	case *bigquery.IntervalValue:
		return t.String()
	case *bigquery.RangeValue:
		return flatten.Record{
			{Name: "start", Value: normalize(rangeElement(field), t.Start)},
			{Name: "end", Value: normalize(rangeElement(field), t.End)},
		}
	case []bigquery.Value:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(nil, item)
		}
		return out
	}
	return v
}

func rangeElement(field *bigquery.FieldSchema) *bigquery.FieldSchema {
	if field == nil || field.RangeElementType == nil {
		return nil
	}
	return &bigquery.FieldSchema{Type: field.RangeElementType.Type}
}
