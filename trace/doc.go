// Package trace provides sinks for the kernel's trace records, see
// [aokernel.TraceSink].
//
// The kernel emits records inside its critical section, so sinks that do
// any real work, such as [LogSink] and [JSONWriter], should be wrapped in
// an [AsyncSink]. [RateLimit] drops records per kind, and [Recorder] keeps
// them in memory, e.g. for tests.
package trace
