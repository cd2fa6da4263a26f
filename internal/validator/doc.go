// Package validator statically checks fragment source for gross syntax
// errors before it is persisted or executed.
//
// Server-logic fragments get a full lexical scan: string and comment
// tracking, bracket balancing, and unterminated-construct detection with the
// best-known line number. The other kinds get a lighter balanced-delimiter
// check since malformed script, stylesheet, or markup cannot crash the host.
//
// Validation never executes the candidate code.
package validator
