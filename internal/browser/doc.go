// Package browser wraps chromedp behind the narrow page surface the pipeline
// engines drive.
//
// One Launcher (a shared Chrome exec allocator) serves the whole process.
// Each user session gets its own browser context via NewSession; contexts are
// never shared between sessions. Every operation runs under a short bounded
// timeout from configuration, and caller cancellation aborts in-flight CDP
// work. Closing a session is idempotent; it is the cleanup that prevents
// leaked Chrome processes under many concurrent sessions.
package browser
