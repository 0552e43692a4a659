// Package authcore is the authentication and session lifecycle engine of a
// multi-tenant task-management platform: credential verification, TOTP MFA,
// asymmetric access/refresh token issuance, refresh-token rotation with
// reuse detection, and password reset with full session invalidation.
//
// The engine is constructed through [Builder] and injected with its
// collaborators: a [Repository] for users and token records, a
// [ResetNotifier] for out-of-band reset delivery, and optionally an
// [AuditSink] and logger. There is no ambient global state; tenant and user
// identifiers are explicit arguments on every operation. Engine methods are
// safe to call from multiple goroutines after [Builder.Build].
//
// # Rotation and reuse detection
//
// Every login opens a token family. Rotation conditionally revokes the
// presented record and appends a child to the same family; presenting an
// already-consumed token revokes the entire family, forcing re-login. Two
// concurrent rotations of one token cannot both succeed: the repository's
// conditional check-and-set arbitrates, and the loser observes the revoked
// record and triggers family revocation.
//
// # Authorization
//
// The resource-level decision function lives in the stateless authz
// subpackage and is invoked independently with decoded token claims; see
// [ActorFromClaims].
package authcore
