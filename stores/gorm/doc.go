//go:build !wasm
// +build !wasm

// Package gorm provides GORM-based implementations of secretkeeper store
// interfaces.  It supports any database that GORM supports (PostgreSQL,
// MySQL, SQLite, etc.) and is suitable for production deployments
// requiring relational database storage.
//
// # Database Schema
//
// The package auto-migrates the following tables:
//   - accounts: Canonical accounts with optional local credentials
//   - external_identities: (provider, subject_id) pairs, composite primary
//     key so each pair belongs to exactly one account
//   - sessions: Opaque session tokens stored by hash
//   - secrets: Named configuration secrets (signing keys)
//
// # Usage
//
//	db, _ := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
//	accountStore := gormstore.NewAccountStore(db)
//	sessionStore := gormstore.NewSessionStore(db)
package gorm
