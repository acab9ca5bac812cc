// Package authcore implements the credential and session lifecycle core
// of an account system: scrypt password hashing, HMAC-signed stateless
// carrier tokens, single-use verification codes with an attempt budget,
// opaque bearer sessions, and the login, signup, password-reset, and
// external-identity flows composed from them.
//
// The package is a library, not a server. Route handlers construct an
// Engine once at process start
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithStore(store).
//		WithRedis(rdb).
//		WithMailer(mailer).
//		Build()
//
// and call its flow methods with plain arguments. The engine never sees
// cookies or HTTP requests; tokens and identifiers come in and go out as
// values.
//
// Authentication failures are deliberately uninformative: each flow step
// has one generic error covering every failure cause, and the real cause
// is available only through the structured log and the audit stream.
package authcore
