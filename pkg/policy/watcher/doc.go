// Package watcher triggers policy reloads when the artifact changes.
//
// FileWatcher watches the directory holding the artifact, so editors and
// deploy tools that replace the file by rename are seen as well as in-place
// writes. Bursts of events are collapsed by a Debouncer into one trigger.
// Poller re-triggers on a cron schedule for filesystems that do not deliver
// change events. Both only call the supplied reload function; they never
// stop on a failed reload or a transient filesystem error.
package watcher
