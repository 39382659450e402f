//go:build !wasm
// +build !wasm

// Package gae provides Google Cloud Datastore implementations of
// secretkeeper store interfaces.  It is designed for deployment on Google
// Cloud Platform and supports multi-tenancy through Datastore namespaces.
//
// # Datastore Kinds
//
// The package uses the following Datastore kinds:
//   - Account: Canonical accounts with optional local credentials
//   - Identifier: Claims a local identifier for exactly one account
//   - Identity: Claims a (provider, subjectId) pair for exactly one account
//   - Session: Opaque session tokens stored by hash
//   - Secret: Named configuration secrets (signing keys)
//
// Claims are created inside transactions with a preceding Get, which is
// what makes concurrent find-or-create yield a single account.
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	accountStore := gae.NewAccountStore(client, "")  // default namespace
//	sessionStore := gae.NewSessionStore(client, "")
package gae
