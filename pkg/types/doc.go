// Package types defines the entity types, archive categories, configuration,
// and standard error values shared by the chronicle storage engine and its
// maintenance tools.
// See docs/ARCHITECTURE § Data Model.
package types
