// Package ceremony implements the WebAuthn registration and authentication
// ceremonies: issuing single-use challenges, producing credential creation
// and request options, and cryptographically verifying the responses an
// authenticator returns.
//
// The package owns no persistent state. Challenges, credentials, and sign
// counters live behind the Store interface; the store's atomic consume and
// compare-and-swap operations are what make challenge single-use and
// counter monotonicity hold under concurrent requests.
package ceremony
