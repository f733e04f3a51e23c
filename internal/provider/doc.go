// Package provider contains the streaming protocol adapters for the
// supported agent CLIs and the registry that tracks which providers are
// configured and available.
//
// Each adapter owns the full lifecycle of one subprocess per run: it
// builds the provider-specific argument list from the descriptor, runs
// the executable in its own process group, consumes its structured
// output line by line, and normalizes every output unit into worker
// events. The first bytes of assistant text produce the first chunk
// event as soon as they arrive.
//
// When a structured stream fails, the adapter degrades once to a
// single-shot invocation without the structured-output flag and treats
// the whole captured output as the final answer. Error text is
// secondarily classified for quota/rate-limit exhaustion, which the
// failover policy uses to promote an alternate primary.
//
// Cancellation kills the subprocess group, so descendants spawned by
// the provider CLI do not outlive a cancelled run.
package provider
