package store

import (
	"reflect"

	"github.com/conduit-lang/seedsync/pkg/schema"
)

// copyAttrs makes a shallow copy so adapters never mutate caller maps
func copyAttrs(attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// looseEqual compares attribute values, normalizing the numeric and byte
// representations different drivers hand back
func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
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
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// splitAssociations separates plain field attributes from resolved to-many
// association attributes (lists of entities to replace the association with)
func splitAssociations(res *schema.Resource, attrs map[string]interface{}) (map[string]interface{}, map[string][]*Entity) {
	fields := make(map[string]interface{}, len(attrs))
	assocs := make(map[string][]*Entity)

	for name, value := range attrs {
		if a, ok := res.Associations[name]; ok && a.Kind.ToMany() {
			if targets, ok := value.([]*Entity); ok {
				assocs[name] = targets
				continue
			}
		}
		fields[name] = value
	}
	return fields, assocs
}

// validateAttrs applies the resource's write-path validation: attributes must
// be declared fields, and inserts must carry every required field that is not
// auto-generated
func validateAttrs(res *schema.Resource, attrs map[string]interface{}, insert bool) *ValidationError {
	var errs []FieldError

	for name := range attrs {
		if !res.HasField(name) && !res.HasAssociation(name) {
			errs = append(errs, FieldError{Field: name, Message: "unknown field"})
		}
	}

	if insert {
		for name, f := range res.Fields {
			if !f.Required || f.Auto {
				continue
			}
			if v, ok := attrs[name]; !ok || v == nil {
				errs = append(errs, FieldError{Field: name, Message: "is required"})
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Resource: res.Name, Attrs: attrs, Errors: errs}
}
