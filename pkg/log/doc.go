// Package log is a small wrapper around the standard library logger that
// gives every component of jobsearch its own named logger.
//
// Each line carries a level and a `[name>]` marker:
//
//	2025/01/02 15:04:05.000000 INFO [reqcache>] pruned 3 entries
//
// Debug output is off by default. It can be enabled for everything with
// SetGlobalDebug (the --debug flag) or for a single component:
//
//	log.EnableDebugFor("jsearch")
//	log.ForService("jsearch").Debugf("GET %s", key)
//
// Tests capture output with SetOutput and a bytes.Buffer.
//
// The package name collides with the standard library one; alias it when
// both are needed.
package log
