// Package procutil runs subprocesses with logging and soft timeouts.
//
// A soft timeout never cancels the work it watches. Long-running Buck and
// cargo invocations are normal; the timeout exists to tell the user that a
// command is still going, and later how long it took, not to abort it.
package procutil
