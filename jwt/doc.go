// Package jwt signs and decodes the asymmetric access and refresh tokens of
// the identity core. The private key signs; verification requires only the
// public key, so verification-only deployments never hold signing
// capability.
package jwt
