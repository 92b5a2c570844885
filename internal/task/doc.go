// Package task defines the persisted task model and its SQLite-backed store.
//
// A task moves through the fixed step order parse, subtitles, dub, pack,
// publish. Each step records its outcome as a state/key/error triple on the
// task row, and LastStep only ever advances forward.
package task
