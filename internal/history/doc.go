// Package history records crawl jobs in a local SQLite database.
//
// The CLI stores every crawl it runs so that `simplecrawl history` can list
// past jobs and where their output was written, even after the service has
// expired the job. Each job row is keyed by the service job ID and updated
// in place when the same job is recorded again (for example after a manual
// status check). The pages written for a job are kept in a second table.
//
// The database lives in a single file (simplecrawl.db) and uses the CGO-free
// modernc.org/sqlite driver.
package history
