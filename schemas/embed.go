// Package schemas holds the JSON Schemas shipped with gigmatch.
package schemas

import _ "embed"

// AssignmentPolicy validates the --policy file.
//
//go:embed assignment_policy.schema.json
var AssignmentPolicy string
