// Package stream observes long-running server-side operations as a finite
// sequence of events. A session prefers the server's push stream and falls
// back to polling the status endpoint transparently, so consumers see one
// event channel regardless of transport.
package stream
