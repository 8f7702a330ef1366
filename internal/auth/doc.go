// Package auth inspects stored bearer tokens on the client side: expiry
// and subject claims are read without signature verification, which stays
// the server's job.
package auth
