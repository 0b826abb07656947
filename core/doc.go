// Package core contains the domain model shared by every AgentGrid
// component: immutable prioritized messages with typed payloads, stateful
// agents with exclusively-owned inbox/outbox queues, the task dependency
// graph, and the per-run execution context that aggregates them.
//
// Nothing in this package performs I/O or talks to a reasoning backend;
// orchestration lives in the bus and scheduler packages.
package core
