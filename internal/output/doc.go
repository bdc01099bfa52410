// Package output writes scraped pages and crawl summaries to disk.
//
// Every job gets its own directory under the output root:
//
//	<root>/<jobID>/raw/<slug>-<hash>.md      markdown returned by the service
//	<root>/<jobID>/raw/<slug>-<hash>.html    HTML returned by the service
//	<root>/<jobID>/cleaned/<slug>-<hash>.md  markdown produced by the cleaner
//	<root>/<jobID>/summary.md                job summary
//
// The slug is derived from the page URL so that files are easy to find, and
// the hash keeps names unique when two URLs map to the same slug.
package output
