// Package benchmark runs the retrieve-study workload.
//
// Each iteration queries the instance manifest of a study, expands it into
// one task per frame and retrieves all frames on a worker pool bounded by
// min(MaxThreads, frames). Frame failures are counted and logged but never
// abort the iteration. Two lock-free milestones capture the earliest first
// byte and the earliest fully read frame across workers.
//
// Iterations run strictly one after another. Their derived values are
// appended to per-run metric series and handed to every configured Reporter.
package benchmark
