// Package auth obtains bearer tokens from an OAuth2 token endpoint and keeps
// a pipeline client's token current.
//
// Two grants are supported: client_credentials and password. The fetched
// access token is handed to the client with SetAuthToken, so the pipeline
// itself only ever deals in bearer tokens.
package auth
