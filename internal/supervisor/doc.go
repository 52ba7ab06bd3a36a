// Package supervisor runs one external tool at a time and resolves how it ended.
//
// A Supervisor owns at most one child process. Start spawns it, either
// directly or through an askpass-capable elevation helper, and returns a Run
// whose Done channel closes exactly once when the child has exited and all
// of its output has been forwarded:
//
//	sup := supervisor.New(supervisor.Options{Output: out})
//	run, err := sup.Start(ctx, supervisor.Request{Tool: "onecc", Args: args})
//	if err != nil {
//	    return err // ALREADY_RUNNING, MISSING_CREDENTIAL, RELAY_INIT_FAILED, SPAWN_FAILED
//	}
//	outcome, err := run.Wait(ctx)
//
// Every run ends in one of four outcomes:
//
//	Success{ExitCode: 0}               exited cleanly
//	Success{IntentionallyKilled: true} terminated after Kill
//	Failure{ExitCode: n > 0}           exited with an error code
//	Failure{Signal: "SIGxxx"}          killed by someone else
//
// Kill only requests termination. Once it has been delivered IsRunning
// reports false and Start accepts a new run, even if the killed child
// ignores the signal and is still alive. A caller that must never have two
// live processes waits on the old Run's Done channel before starting again.
//
// Outcomes are values, not errors; Outcome.Err converts a failure for
// callers that want one.
//
// Elevated runs read the credential from the CredentialSource passed in
// Options, write it into a one-shot askpass script (package relay), and
// remove that script after the outcome has been delivered. Cleanup never
// changes or delays the outcome; a failed removal is logged as a warning.
package supervisor
