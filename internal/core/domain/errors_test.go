package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedKind", ErrUnsupportedKind},
		{"ErrDuplicateRecord", ErrDuplicateRecord},
		{"ErrInUse", ErrInUse},
		{"ErrFailureThreshold", ErrFailureThreshold},
		{"ErrRunInProgress", ErrRunInProgress},
		{"ErrNoXMLID", ErrNoXMLID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("duplicate entry")
	err := fmt.Errorf("create: %w", &PersistenceError{
		Kind:    "iblock.iblock",
		XMLID:   "news_block",
		Message: "Duplicate CODE",
		Err:     cause,
	})

	var pe *PersistenceError
	assert.True(t, errors.As(err, &pe))
	assert.Equal(t, "iblock.iblock", pe.Kind)
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), `iblock.iblock "news_block": persistence failed: Duplicate CODE`)
}

func TestPersistenceError_FallsBackToCause(t *testing.T) {
	err := &PersistenceError{Kind: "perfmon.index", Err: errors.New("syntax error")}
	assert.Equal(t, "perfmon.index: persistence failed: syntax error", err.Error())
}

func TestNotFoundError_IsErrNotFound(t *testing.T) {
	err := fmt.Errorf("resolve: %w", &NotFoundError{Kind: "iblock.type", XMLID: "news"})

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `iblock.type "news": not found`)

	byID := &NotFoundError{Kind: "iblock.iblock", ID: NumericID(7)}
	assert.Equal(t, "iblock.iblock #7: not found", byID.Error())
}

func TestCyclicDependencyError(t *testing.T) {
	a := NodeKey{Kind: "a", XMLID: "1"}
	b := NodeKey{Kind: "b", XMLID: "2"}
	err := &CyclicDependencyError{Cycle: []NodeKey{a, b, a}}

	assert.Equal(t, "cyclic dependency: a:1 -> b:2 -> a:1", err.Error())
}

func TestMalformedKeyError(t *testing.T) {
	err := &MalformedKeyError{Kind: "iblock.elementfilter", Key: "x.y", Reason: "expected 6 components, got 2"}
	assert.Equal(t, `iblock.elementfilter: malformed key "x.y": expected 6 components, got 2`, err.Error())
}

func TestBlockedError(t *testing.T) {
	by := NodeKey{Kind: "iblock.iblock", XMLID: "news_block"}
	err := &BlockedError{Kind: "iblock.property", XMLID: "COLOR", By: by, Err: ErrInUse}

	assert.True(t, errors.Is(err, ErrInUse))
	assert.Contains(t, err.Error(), "blocked by iblock.iblock:news_block")

	noCause := &BlockedError{Kind: "k", XMLID: "x", By: by}
	assert.Equal(t, `k "x": blocked by iblock.iblock:news_block`, noCause.Error())
}
