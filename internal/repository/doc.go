// Package repository implements the data access layer for the circulation
// engine.
//
// The repository package contains all database operations using SurrealDB.
// Each repository struct handles the operations for one domain entity.
//
// # Repository Pattern
//
// All repositories follow a consistent pattern:
//
//   - Constructor function (NewXxxRepository) accepts a database connection
//   - Methods implement specific data operations (Create, Get, queries)
//   - SurrealQL queries are used for all database interactions
//   - Results are parsed and mapped to model structs
//
// # Atomic Transitions
//
// The circulation state machine never leaves partial state behind.
// Operations that touch more than one record (claiming a copy for a loan,
// promoting a reservation, expiring a hold and reassigning its copy) are
// composed as database.AtomicBatch statements and commit as one
// transaction. Every status-changing statement carries a WHERE guard on
// the current status, so a concurrent writer that lost the race updates
// nothing.
//
// # Query Patterns
//
//   - Parameterized queries with $variable syntax
//   - type::record() for safe ID handling
//   - Record-link traversal (copy_id.title_id.title) for report rows
//   - time::now() for automatic timestamps
package repository
