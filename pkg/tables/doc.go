// Package tables implements calculated columns over a tabular data model.
//
// Calculated columns are written in a small DAX-like language:
//
//	VAR net = [Qty] * [Price]
//	RETURN IF(net > 100, ROUND(net * 0.9, 2), net)
//
// Definitions may be registered in any order. Each table keeps its
// definitions sorted so every column is computed after the columns it
// reads, and a definition closing a cycle is rejected. InsertRow is
// atomic: when a calculated column fails the row is discarded.
package tables
