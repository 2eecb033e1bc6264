// Package google manages the OAuth credential used to call the Drive API.
//
// A Manager owns one process-wide Credential. Acquire returns a Handle whose
// access token is valid at return time:
//
//   - a stored, unexpired credential is returned without any network call;
//   - an expired credential with a refresh token is refreshed and persisted;
//   - otherwise an interactive authorization runs through the Authorizer
//     (LoopbackAuthorizer in production) and its result is persisted.
//
// Concurrent Acquire calls that find the credential unusable share a single
// refresh or authorization. The client secret (credentials.json) and the
// token store (token.json) live next to the running executable.
package google
