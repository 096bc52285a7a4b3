package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownObject is returned for object type names outside the registry.
	ErrUnknownObject = errors.New("unknown object type")

	// ErrUnsupportedObject is returned for object types the appliance API
	// cannot replicate in bulk.
	ErrUnsupportedObject = errors.New("object type not supported")
)

// ObjectType describes where a configuration collection lives on the appliance
// and how the merge request body is keyed.
type ObjectType struct {
	Name      string `json:"name"`      // CLI name: "hostgroups", "webapps", ...
	Label     string `json:"label"`     // Human-readable: "Host Groups"
	Namespace string `json:"namespace"` // "npm.classification"
	Version   string `json:"version"`   // "3.2"
	Resource  string `json:"resource"`  // "hostgroups"
	BodyKey   string `json:"body_key"`  // merge payload key: "items" or "rules"

	// Reason is set for recognized types that cannot be replicated.
	Reason string `json:"reason,omitempty"`
}

// Supported reports whether the type can be replicated with bulk_delete/merge.
func (o ObjectType) Supported() bool {
	return o.Reason == ""
}

// CollectionPath is the API path of the collection, e.g.
// /api/npm.classification/3.2/hostgroups.
func (o ObjectType) CollectionPath() string {
	return fmt.Sprintf("/api/%s/%s/%s", o.Namespace, o.Version, o.Resource)
}

// BulkDeletePath is the API path of the clear operation.
func (o ObjectType) BulkDeletePath() string {
	return o.CollectionPath() + "/bulk_delete"
}

// MergePath is the API path of the install operation.
func (o ObjectType) MergePath() string {
	return o.CollectionPath() + "/merge"
}

// objectTypes is the closed registry of replicable configuration objects.
var objectTypes = map[string]ObjectType{
	"hostgroups": {Name: "hostgroups", Label: "Host Groups",
		Namespace: "npm.classification", Version: "3.2", Resource: "hostgroups", BodyKey: "items"},
	"applications": {Name: "applications", Label: "General Applications",
		Namespace: "npm.classification", Version: "3.2", Resource: "applications", BodyKey: "items"},
	"urls": {Name: "urls", Label: "URL Applications",
		Namespace: "npm.classification", Version: "3.2", Resource: "urls", BodyKey: "items"},
	"webapps": {Name: "webapps", Label: "Web Application Rules",
		Namespace: "npm.wta_config", Version: "1.0", Resource: "wta_webapps", BodyKey: "rules"},
	"policies": {Name: "policies", Label: "Policies",
		Reason: "policies carry appliance-specific identifiers and must be imported one at a time"},
}

// LookupObjectType resolves a CLI object name against the registry.
// Recognized but unsupported types return the descriptor together with
// ErrUnsupportedObject.
func LookupObjectType(name string) (ObjectType, error) {
	ot, ok := objectTypes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ObjectType{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownObject, name, strings.Join(SupportedObjectNames(), ", "))
	}
	if !ot.Supported() {
		return ot, fmt.Errorf("%w: %q: %s", ErrUnsupportedObject, ot.Name, ot.Reason)
	}
	return ot, nil
}

// ObjectTypes returns every registered type, sorted by name.
func ObjectTypes() []ObjectType {
	result := make([]ObjectType, 0, len(objectTypes))
	for _, ot := range objectTypes {
		result = append(result, ot)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// SupportedObjectNames returns the names usable with --object.
func SupportedObjectNames() []string {
	var names []string
	for _, ot := range ObjectTypes() {
		if ot.Supported() {
			names = append(names, ot.Name)
		}
	}
	return names
}
