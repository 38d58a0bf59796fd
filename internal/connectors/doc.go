// Package connectors provides the source adapters an ingestion pages through.
// Each subpackage knows how to list one provider's inventory (filesystem,
// GitHub, Google Drive) as cursor-addressed pages of entities.
//
// Source types are registered with the Factory at startup.
package connectors
