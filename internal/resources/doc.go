// Package resources provides MCP resources for exposing server settings.
// Resources are read-only data sources that MCP clients can fetch; here they
// describe the working-hours policy applied to free-slot queries.
package resources
