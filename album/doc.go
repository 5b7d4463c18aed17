// Package album turns a stream of chat events from a small set of operators
// into published photo albums.
//
// Each user owns at most one draft Session at a time. Events are classified
// into a single Intent (Classifier), applied by the Machine against the
// Registry, and a finished draft is published under a short sequential code
// handed out by the Allocator. The backing key-value store offers no
// conditional writes, so the Allocator serializes in process and verifies
// every counter write before trusting it.
package album
