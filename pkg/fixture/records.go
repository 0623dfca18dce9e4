package fixture

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/conduit-lang/seedsync/pkg/store"
)

// canonicalize normalizes a producer's output to a flat record list. This is
// the single place struct-vs-mapping polymorphism is handled; everything
// downstream sees []Record.
func canonicalize(raw interface{}) ([]Record, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case Record:
		return []Record{copyRecord(v)}, nil
	case map[string]interface{}:
		return []Record{copyRecord(v)}, nil
	case *store.Entity:
		return []Record{entityRecord(v)}, nil
	case []Record:
		out := make([]Record, len(v))
		for i, rec := range v {
			out[i] = copyRecord(rec)
		}
		return out, nil
	case []map[string]interface{}:
		out := make([]Record, len(v))
		for i, rec := range v {
			out[i] = copyRecord(rec)
		}
		return out, nil
	case []*store.Entity:
		out := make([]Record, len(v))
		for i, e := range v {
			out[i] = entityRecord(e)
		}
		return out, nil
	case []interface{}:
		var out []Record
		for _, item := range v {
			recs, err := canonicalize(item)
			if err != nil {
				return nil, err
			}
			out = append(out, recs...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported record type %T", raw)
	}
}

// entityRecord converts a store entity into a plain record, dropping loaded
// association state so only persistable attributes remain
func entityRecord(e *store.Entity) Record {
	rec := make(Record, len(e.Attrs))
	for k, v := range e.Attrs {
		if _, ok := v.([]*store.Entity); ok {
			continue
		}
		rec[k] = v
	}
	return rec
}

func copyRecord(rec map[string]interface{}) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// sortedFields returns a record's field names in resolution order. Go maps do
// not preserve insertion order, so sorted field order is the deterministic
// order all resolution and deferral follows.
func sortedFields(rec Record) []string {
	fields := make([]string, 0, len(rec))
	for k := range rec {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// valuesEqual compares a produced attribute against a lookup value,
// normalizing numeric representations
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
