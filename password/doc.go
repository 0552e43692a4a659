// Package password implements the credential policy of the identity core:
// Argon2id hashing in PHC string format, the ordered strength policy, and
// the k-anonymity breach lookup against an external compromised-password
// service.
//
// Raw passwords never leave this package: the breach check transmits only a
// five-character digest prefix, and hashes are salted per call.
package password
