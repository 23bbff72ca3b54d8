// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrDuplicateBlock indicates a block with the same hash already
	// exists in the DAG.
	ErrDuplicateBlock ErrorCode = iota

	// ErrUnknownParent indicates the parent hash named by a block is not
	// present in the DAG. A parent evicted by a checkpoint is unknown the
	// same way a never-seen parent is.
	ErrUnknownParent

	// ErrUnknownReferee indicates a referee hash named by a block is not
	// present in the DAG.
	ErrUnknownReferee

	// ErrCyclicReference indicates a referee that is reachable through the
	// block's own parent chain, a referee listed twice, or any other
	// reference that would fold the DAG back on itself.
	ErrCyclicReference

	// ErrOutOfWindow indicates a query about a block behind the pruning
	// frontier, whose bit-vector and weight state have been released.
	ErrOutOfWindow

	// ErrCheckpointTooShallow indicates a checkpoint candidate that is not
	// deep enough below the pivot tip or not sufficiently confirmed.
	ErrCheckpointTooShallow

	// ErrIrrecoverableReorg indicates the retained history is insufficient
	// for the pivot chain to converge: a reorganization would have to
	// reach behind the pruning frontier. The node must resync.
	ErrIrrecoverableReorg
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDuplicateBlock:       "ErrDuplicateBlock",
	ErrUnknownParent:        "ErrUnknownParent",
	ErrUnknownReferee:       "ErrUnknownReferee",
	ErrCyclicReference:      "ErrCyclicReference",
	ErrOutOfWindow:          "ErrOutOfWindow",
	ErrCheckpointTooShallow: "ErrCheckpointTooShallow",
	ErrIrrecoverableReorg:   "ErrIrrecoverableReorg",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block failed due to one of the consensus rules. The caller
// can use type assertions to determine if a failure was specifically due to a
// rule violation and access the ErrorCode field to ascertain the specific
// reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}
