package replication

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rflorenc/arcfg/internal/models"
)

// objectName returns the name of a record for log output, falling back to its
// id. Records are never modified; this only peeks at them.
func objectName(raw models.Object) string {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	if n := stringField(obj, "name"); n != "" {
		return n
	}
	switch id := obj["id"].(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%d", int64(id))
	}
	return ""
}

// stringField safely extracts a string field, returning "" if nil.
func stringField(obj map[string]interface{}, field string) string {
	if v, ok := obj[field].(string); ok {
		return v
	}
	return ""
}

// summarize lists up to limit record names, e.g. "web, db, +3 more".
func summarize(items models.Collection, limit int) string {
	var names []string
	for i, it := range items {
		if i == limit {
			names = append(names, fmt.Sprintf("+%d more", len(items)-limit))
			break
		}
		n := objectName(it)
		if n == "" {
			n = "?"
		}
		names = append(names, n)
	}
	return strings.Join(names, ", ")
}
