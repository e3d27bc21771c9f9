// Package sqlite provides a SQLite-backed implementation of driven.LiveStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. The database models the CMS tables the
// entity providers read and write (info-block types, info-blocks, properties, enum
// values, user fields, user options, performance indexes, URL rewrite rules).
//
// # Schema
//
// The schema is managed through versioned migrations stored in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files.
//
// Table and column names passed to the store are checked against the live schema
// before any statement is built.
//
// # Data Location
//
// By default, the database is stored at ~/.migrato/data/site.db. MemoryPath opens a
// private in-memory database.
package sqlite
