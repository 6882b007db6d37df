// Package internal holds the parts of nextcrm that are private to the module.
//
// # Sub-packages
//
//   - events: async event dispatch (Dispatcher + Sink implementations)
//   - metrics: lock-free counters and latency histograms
//   - fakebackend: an in-process NextCRM backend for tests, the load
//     generator and the demo server
//
// # What this package must NOT do
//
//   - Export types that appear in the public nextcrm API.
//   - Be imported by any package outside the nextcrm module.
package internal
