/*
Package agent assembles canonical generation requests from task
configuration and drives one generation per chat turn.

# Overview

A chat turn names a task and a thread. The Assembler resolves the task (with
a fallback to "home") together with the always-present "global" task, loads
the thread's recent history and resolves the union of their tool ids. The
Service then routes the request to a provider, wraps it in the retrying
adapter and streams canonical chunks back.

	┌───────────────────────────────────────────────┐
	│ Service.Stream(task, thread)                  │
	├───────────────────────────────────────────────┤
	│ Assembler ── TaskStore / MessageStore / Tools │
	├───────────────────────────────────────────────┤
	│ ProviderRegistry.Resolve(model)               │
	│ RetryableProvider ── adapter ── upstream      │
	└───────────────────────────────────────────────┘

# Stores

TaskStore and MessageStore are read-side interfaces. Implementations for
memory, SQL and Redis live in the persistence subpackage.
*/
package agent
