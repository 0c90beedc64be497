// Package gen renders schema plans as Go source.
//
// Every database becomes one file holding, per table:
//
//   - the item, stored and add argument structs;
//   - a sealed get argument interface with one struct per index;
//   - a range query interface per index;
//   - the subscription event struct and a Table descriptor.
//
// A shared file holds the schema's type aliases and the helper types
// (Ref, EventKind, Table and Index). Files are rendered with jennifer and
// written in parallel.
//
// Schema numbers are float64; a union whose alternatives map to
// different Go types is any.
package gen
