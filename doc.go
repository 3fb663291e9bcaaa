// Package worker bridges worker code to a single-threaded host runtime.
//
// The host owns every foreign resource on one event-loop goroutine. This
// package provides the safety and convenience layer between that loop and
// ordinary Go code: affinity-checked handle wrappers (Guard), single-shot
// completion bridging (Promise), an ordered, duplicate-preserving HTTP
// message model with host-native conversions, typed binding handles for
// key-value, queue, relational-database, object-store and durable-actor
// resources plus outbound fetch (Env), and the event registration and
// dispatch surface (Worker, Router).
//
// Handler goroutines never touch foreign handles directly: every binding
// operation is marshalled onto the loop via the environment's Scheduler
// and its outcome travels back as a Promise. The simhost subpackage
// provides a complete in-process host for tests and local development.
package worker
