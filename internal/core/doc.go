// Package core runs contact imports for the web server.
//
// It sits between transport and the importer package. A [Service] bounds
// how many imports run at once, applies size and time limits, keeps a short
// history of finished runs, and hands results to an optional contact store.
//
// # Import Flow
//
//  1. A handler calls [Service.Import] with the uploaded file.
//  2. The service waits for a slot in its [Limiter] (or fails with
//     [ErrTooManyUploads]).
//  3. The importer reads the file to the end and merges rows by email.
//  4. The finished [ImportRun] is kept for the retention period and can be
//     fetched with [Service.GetRun] or saved with [Service.StoreRun].
//
// A run that fails keeps no contacts; its error is recorded on the run.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: File errors (size, field count, encoding, line length)
//   - IMP001-IMP005: Import errors (busy, cancelled, timeout, not found)
//   - DB001-DB003: Storage errors (disabled, connection, deadlock)
//   - REQ001, RATE001: Request errors (unreadable body, rate limited)
package core
