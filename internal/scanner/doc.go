// Package scanner discovers candidate project directories under configured
// roots and extracts lightweight metadata for each one.
//
// # Pipeline
//
// A scan runs in two phases:
//
//  1. Discovery: each configured root is walked to a bounded depth looking
//     for .git directories; each match's parent becomes a git candidate.
//     The root itself joins the candidate set only under the rules described
//     on Scanner.Scan. Candidates are deduplicated by canonical path.
//  2. Extraction: candidates are processed strictly sequentially. Each one
//     is stat'ed, size-sampled, queried for VCS metadata, and probed for
//     READMEs and a language manifest. A failure while processing one
//     candidate is recorded in the result's Errors and never stops the scan.
//
// # Bounded heuristics
//
// Size and file count are deliberately approximate: size sampling stops at
// depth 3 or once 100 MB has been accumulated, file counting stops at depth
// 5, README discovery at depth 2. Callers must not treat either value as a
// filesystem truth.
//
// # Cancellation and progress
//
// Cancellation is cooperative: the context is polled once per candidate,
// between candidates, so in-flight work on the current candidate always
// completes. Progress is reported after every 10th processed candidate and
// once more at the end.
package scanner
