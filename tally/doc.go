/*
Package tally provides export of voting session snapshots to the file system.

Export makes the ledger-confirmed voting state (window and per-candidate
tallies) available for offline processing. Exports are write-once, they are
never read back as session state.

The package works with exports stored in the file system using human-readable
encoding.
*/
package tally
