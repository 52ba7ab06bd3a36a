// Package relay materializes a one-shot askpass helper for elevated runs.
//
// A Script is a tiny owner-only shell script that prints a credential on
// stdout. The elevation helper (sudo -A) runs it through SUDO_ASKPASS, so the
// credential never appears on a command line or in a log. The script lives in
// a private scratch directory that is removed after the run.
//
// Only one script may exist per scratch directory. Create takes a
// process-wide lock on the directory and Script.Close releases it, so two
// elevated runs sharing a directory are serialized instead of deleting each
// other's script.
package relay
