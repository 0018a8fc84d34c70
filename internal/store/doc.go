// Package store is a SQLite sandbox of the remote service.
//
// It implements client.Provider so the adapter, the CLI and the scenario
// harness run end to end without a network. Each root table becomes one SQL
// table named after its entity set. Derived tables share the table of their
// base and are told apart by the "__type" column.
//
// # Remote semantics
//
//   - Filter text is parsed with filter.Parse and compiled to parameterized
//     SQL. Values are never interpolated.
//   - By-key reads, updates and deletes that match nothing fail with a 404
//     *client.RequestError, which matches client.ErrNotFound.
//   - With navigation, the key applies to the first segment. Filter, order,
//     paging, projection and expansion apply to the last segment.
//   - Every read orders by the key columns last so results are deterministic.
//   - Batches queue writes and apply them in one SQL transaction on Commit.
//     Writes through a batch report zero counts and no entries.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
