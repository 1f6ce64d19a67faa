// Package core defines the shared language of the dataexplorer system.
//
// This package contains:
//   - Dataset and schema entities (DatasetID, TableSchema, SchemaSet)
//   - Pipeline values (ChartIntent, QueryPlan, RowSet, ChartArtifact)
//   - The stream event protocol (Event)
//   - Warehouse connection settings (AdapterConfig, Rows)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
