// Package authflow negotiates OAuth grants against the Accomplish
// authorization server.
//
// The primary flow is the device grant: Begin obtains a device authorization
// (user code, verification URI, poll interval) and Complete polls the token
// endpoint until the user approves, honoring authorization_pending and
// slow_down responses. An alternative redirect-capture flow trades polling
// for a single authorization-code exchange, receiving the code on an
// ephemeral localhost listener (Listener) guarded by a per-session CSRF
// state value.
//
// Accomplish's token endpoints accept JSON-encoded requests rather than the
// form encoding the oauth2 package emits, so refresh traffic is rewritten by
// a converting RoundTripper (see TokenRefresher).
package authflow
