// Package harness runs YAML scenarios against a table adapter.
//
// # Scenario Format
//
//	name: northwind_reads
//	description: "Key lookups against the Northwind sandbox"
//	setup:
//	  - op: insert
//	    table: Categories
//	    data: { CategoryID: 1, CategoryName: Beverages }
//	steps:
//	  - op: get
//	    table: Products
//	    key: [1]
//	    expect:
//	      record: { ProductName: Chai }
//	  - op: find
//	    table: Products
//	    where: "UnitPrice gt 20"
//	    expect:
//	      count: 2
//	  - op: get
//	    table: Products
//	    key: [-1]
//	    expect:
//	      error: NOT_FOUND
//	assertions:
//	  - type: final_state
//	    table: Categories
//	    where: "CategoryID eq 1"
//	    expect: { CategoryName: Beverages }
//
// Operations are get, find, query, insert, update and delete. Criteria are
// written as filter text and parsed with filter.Parse.
//
// # Expectations
//
//   - error: the adapter.CodeOf classification of the failure
//   - count: rows returned, or rows affected by a write
//   - total: the total count delivered by a query with total_count
//   - record: subset match of the single (or first) returned row
//   - rows: subset match of every returned row, in order
//
// # Assertion Types
//
//   - final_state: a row matching where exists and matches expect
//   - row_count: exactly count rows match where
//
// # Isolation
//
// RunSandbox executes a scenario against a fresh in-memory SQLite sandbox
// built from a schema, so setup steps fully determine the data. Run
// executes against any adapter.
//
// Each step is rendered to its protocol command for the trace, which makes
// traces suitable for golden file comparison.
package harness
