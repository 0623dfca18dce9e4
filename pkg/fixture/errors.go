package fixture

import (
	"fmt"
	"sort"
	"strings"
)

// LookupNotFoundError is returned when a Lookup matches no entity
type LookupNotFoundError struct {
	Resource string
	Criteria map[string]interface{}
}

// Error implements the error interface
func (e *LookupNotFoundError) Error() string {
	return fmt.Sprintf("lookup found no %s matching %s", e.Resource, formatCriteria(e.Criteria))
}

// RelationNotFoundError is returned when an explicit relation lookup matches
// no synced entity
type RelationNotFoundError struct {
	Field string
	Value interface{}
}

// Error implements the error interface
func (e *RelationNotFoundError) Error() string {
	return fmt.Sprintf("relation %s found no synced entity matching %v", e.Field, e.Value)
}

// SyncError tags a batch failure with the fixture that caused it
type SyncError struct {
	Fixture string
	Err     error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	return fmt.Sprintf("sync failed for fixture %s: %v", e.Fixture, e.Err)
}

// Unwrap returns the underlying cause
func (e *SyncError) Unwrap() error {
	return e.Err
}

func formatCriteria(criteria map[string]interface{}) string {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, criteria[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
