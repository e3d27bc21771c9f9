package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedKind indicates no provider is registered for an entity kind.
	ErrUnsupportedKind = errors.New("unsupported kind")

	// ErrDuplicateRecord indicates two records in one batch share kind and xmlId.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrInUse indicates a live entity cannot be deleted because another
	// live entity still references it.
	ErrInUse = errors.New("referenced by another record")

	// ErrFailureThreshold indicates a pass stopped dispatching records
	// after too many failures.
	ErrFailureThreshold = errors.New("failure threshold reached")

	// ErrRunInProgress indicates another pass holds the live database.
	ErrRunInProgress = errors.New("another run is in progress")

	// ErrNoXMLID indicates a live entity has no portable key. References
	// to it cannot be tracked, so prune keeps it.
	ErrNoXMLID = errors.New("record has no xml id")
)

// PersistenceError reports that a live create, update or delete call failed.
type PersistenceError struct {
	Kind    string
	XMLID   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.XMLID == "" {
		return fmt.Sprintf("%s: persistence failed: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s %q: persistence failed: %s", e.Kind, e.XMLID, msg)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotFoundError reports that a record has no live counterpart.
type NotFoundError struct {
	Kind  string
	XMLID string
	ID    RecordID
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	switch {
	case e.XMLID != "":
		return fmt.Sprintf("%s %q: not found", e.Kind, e.XMLID)
	case !e.ID.IsZero():
		return fmt.Sprintf("%s #%s: not found", e.Kind, e.ID)
	default:
		return fmt.Sprintf("%s: not found", e.Kind)
	}
}

// Is makes NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CyclicDependencyError reports that a batch's dependency graph is not a DAG.
// Cycle lists the nodes of one offending cycle, starting and ending on the
// same node.
type CyclicDependencyError struct {
	Cycle []NodeKey
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, n := range e.Cycle {
		parts[i] = n.String()
	}
	return "cyclic dependency: " + strings.Join(parts, " -> ")
}

// MalformedKeyError reports a virtual xmlId that does not match the
// schema of its kind.
type MalformedKeyError struct {
	Kind   string
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("%s: malformed key %q: %s", e.Kind, e.Key, e.Reason)
}

// BlockedError reports that a record was skipped because a record it
// depends on, or that depends on it when deleting, could not be processed.
type BlockedError struct {
	Kind  string
	XMLID string
	By    NodeKey
	Err   error
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: blocked by %s: %v", e.Kind, e.XMLID, e.By, e.Err)
	}
	return fmt.Sprintf("%s %q: blocked by %s", e.Kind, e.XMLID, e.By)
}

// Unwrap returns the underlying error.
func (e *BlockedError) Unwrap() error {
	return e.Err
}
