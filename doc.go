// Package diminuto provides the ambient plumbing shared by the component
// packages in this module: a structured logging interface, a small typed
// error taxonomy, and rate-limited logging of recurring conditions.
//
// # Components
//
// The core systems primitives live in sibling packages, each independently
// importable:
//
//   - list: intrusive circular doubly-linked list
//   - pool, well: object allocators built on list
//   - buffer: size-class byte allocator built on pool
//   - mutex, condition: synchronization primitives
//   - thread: goroutine wrapper with a synchronized state machine
//   - timer: monotonic one-shot/periodic callback scheduling
//   - modulator: software PWM built on timer
//   - controller: fixed-point PID control loop
//   - mux: pselect-based readiness multiplexer
//   - ticks: tick/frequency conversions shared by the above
//
// This root package has no dependency on any of them; it exists so they can
// depend on one small, shared ambient layer instead of reinventing logging
// and error handling per package.
package diminuto
