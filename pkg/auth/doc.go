// Package auth authenticates users.
//
// Users log in with email and password (bcrypt hashes) and receive a signed
// HS256 access token. Every later request presents the token as a Bearer
// credential; Service.Authenticate verifies it and loads the active user.
//
//	tokens := auth.NewTokenManager(secret, "agronomy", time.Hour)
//	svc := auth.NewService(auth.NewPostgresStore(db), tokens)
//	result, err := svc.Login(ctx, "ada@example.com", "s3cret")
//
// Users exist independently of organizations; tenancy is resolved
// separately by pkg/tenancy.
package auth
