// Package vault keeps a session-scoped index of every still the console has
// shown, with a content digest per frame. The index lives in an in-memory
// SQLite database and disappears with the process.
package vault
