// Package models contains GORM persistence models that map to database tables.
// They are kept apart from the tenancy domain types so the domain layer stays
// free of ORM tags.
//
// Tables:
//   - businesses: tenants, their owner, plan, module switches and linked ids
//   - users: per-uid profile; business_id marks a staff account
//   - staff: membership of a uid in a business, with raw permissions
//   - link_requests: cross-business access requests
//
// JSON columns use gorm.io/datatypes so the same models run on PostgreSQL
// and SQLite.
package models
