// Package secretkeeper implements credential and session authentication
// for a content-gated web application: bcrypt password hashing and
// verification, registration and local login, multi-provider identity
// resolution with race-free find-or-create account linking, and opaque or
// signed session tokens.
//
// The core is store-agnostic.  Applications inject an AccountStore and a
// SessionStore (filesystem, GORM and Cloud Datastore backends live under
// stores/) and mount the HTTP handlers:
//
//	accounts := fs.NewAccountStore(dir)
//	sessions := fs.NewSessionStore(dir)
//	auth := secretkeeper.New("MyApp", accounts, sessions)
//
//	local := &secretkeeper.LocalAuth{
//		Accounts:      accounts,
//		HandleAccount: auth.HandleLocalAccount("/secrets"),
//	}
//	auth.AddAuth("/login", local)
//	auth.AddAuth("/google", oauth2.NewGoogleOAuth2("", "", "", auth.SaveIdentityAndRedirect))
//
// The presentation layer owns routing, forms and redirect targets; this
// package returns typed errors (see errors.go) that the web layer
// translates.
package secretkeeper
