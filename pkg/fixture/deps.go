package fixture

// Dependencies scans a fixture's raw records, recursively through lists and
// maps, for relation and nested references to fixtures in the given set.
// Both reference forms count as must-sync-before edges for batch ordering,
// even though nested children are synced after their parent within a single
// fixture's own sync.
func Dependencies(f *Fixture, set map[string]*Fixture) []string {
	records, err := canonicalize(f.Produce())
	if err != nil {
		return nil
	}

	var deps []string
	seen := make(map[string]bool)
	add := func(fx *Fixture) {
		if fx == nil || fx.Name == f.Name || seen[fx.Name] {
			return
		}
		if _, ok := set[fx.Name]; !ok {
			return
		}
		seen[fx.Name] = true
		deps = append(deps, fx.Name)
	}

	var walk func(v interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case *Relation:
			add(t.Fixture)
		case RelationList:
			for _, rel := range t {
				walk(rel)
			}
		case *Nested:
			add(t.Fixture)
			for _, rec := range t.Records {
				walk(rec)
			}
		case Record:
			for _, field := range sortedFields(t) {
				walk(t[field])
			}
		case map[string]interface{}:
			for _, field := range sortedFields(Record(t)) {
				walk(t[field])
			}
		case []interface{}:
			for _, item := range t {
				walk(item)
			}
		case []Record:
			for _, rec := range t {
				walk(rec)
			}
		}
	}
	for _, rec := range records {
		walk(rec)
	}
	return deps
}
