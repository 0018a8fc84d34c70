// Package expr provides the caller-facing query model the adapter interprets.
//
// Callers describe what they want in data-source-agnostic terms: boolean
// expression trees over columns and literals, projections, ordering, paging,
// and expansion of related data. The adapter translates what it can into a
// protocol command and hands back every clause it could not translate.
//
// SEALED INTERFACES:
//
// Expression, Reference and Clause are sealed interfaces using the marker
// method pattern. Only types in this package implement them, which keeps
// type switches in the filter converter and the command builder exhaustive.
//
// Example:
//
//	q := expr.From("Products").
//	    Where(expr.And(
//	        expr.Eq(expr.Col("CategoryID"), expr.Lit(1)),
//	        expr.Gt(expr.Col("UnitPrice"), expr.Lit(10)),
//	    )).
//	    OrderBy("ProductName", expr.Descending).
//	    Skip(10).
//	    Take(5)
//
// All node types are plain values. Construct them as values, not pointers.
package expr
