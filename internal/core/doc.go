// Package core provides the business logic for the voucher CSV import flow.
//
// This package holds all import domain logic independent of any UI or
// transport layer. Web handlers drive it; tests exercise it directly.
//
// # Inspection
//
// A selected file is checked and previewed before anything leaves the
// process. [Inspect] runs, in order:
//
//  1. [CheckFileName]: the name must end in .csv (any case)
//  2. [DecodeText]: BOM-aware decoding, rejecting non-text input
//  3. [SplitLines]: CRLF/LF/CR split, blank lines dropped
//  4. [ResolveHeader]: case-insensitive lookup of the required columns
//  5. [ProjectPreview]: the first [MaxPreviewRows] data rows as raw strings
//
// The preview is advisory. The file is always submitted byte-for-byte as
// selected, so quoted commas that the naive splitter mangles in the preview
// still reach the backend intact.
//
// # Flow
//
// Each import is a [Flow] driven by the pure reducer [Reduce]. Selecting or
// clearing a file bumps the flow's generation; a submission response is only
// applied when its generation still matches. [Service] owns the flows, runs
// the relay for each [SubmitCommand] in the background behind a
// [SubmitLimiter], and records every attempt in a [HistoryStore].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages by [MapError]. Each
// category has a code for support reference:
//
//   - FILE001-FILE005: File errors (size, extension, encoding, missing, empty)
//   - HDR001: Missing required header(s)
//   - AUTH001, API001-API002, NET001: Backend relay errors
//   - UPL001-UPL005: Submission errors (cancelled, busy, not found, timeout)
package core
