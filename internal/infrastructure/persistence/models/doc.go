// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - order.go: storefront orders, cart lines, products and bundle contents (read side)
// - sync_record.go: the ledger synchronization audit trail
package models
