// Package royalty turns licensed revenue into per-creator royalty statements.
//
// A run covers a half-open period. Calculating a run applies each license's
// revenue share, splits the result across the asset's owners with
// largest-remainder rounding and deducts the platform fee. Locking a run
// issues its statements, which creators may then review or dispute.
package royalty
