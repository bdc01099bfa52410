// Package poller drives a crawl job to a terminal state.
//
// The lifecycle of a job is
//
//	submitted -> scraping -> {completed, failed, cancelled}
//
// where submitted is local (no status has been observed yet) and the last
// three states are terminal.
//
// The decision logic lives in Transition, a pure function from the current
// State and one Observation (a status query or a page-fetch result) to the
// next State and a Step telling the caller what to do next. Poller runs that
// function in a loop against a StatusSource. How the loop waits between
// status queries is delegated to a Waiter:
//
//   - SleepWaiter blocks the calling goroutine for the full interval.
//   - ContextWaiter returns early when the context is cancelled.
//
// Both waiters drive the same transitions in the same order and produce the
// same errors; only the waiting step differs.
//
// Within one PollUntilTerminal call the status query, the page-fetches that
// follow a pagination cursor and the wait are strictly sequential. The poller
// starts no goroutines and nothing continues after it returns. Cancelling a
// poll never cancels the job on the service.
package poller
