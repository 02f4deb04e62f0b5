package errors

import (
	"testing"

	"github.com/doublecloud/hubwriter/pkg/errors/categories"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

var errCause = xerrors.New("connection reset by peer")

func TestCategorizedErrorfKeepsMessage(t *testing.T) {
	err := CategorizedErrorf(categories.Configuration, "Cannot set workUnit")
	require.Equal(t, "Cannot set workUnit", err.Error())
	require.True(t, IsCategory(err, categories.Configuration))
	require.False(t, IsCategory(err, categories.Connection))
}

func TestCategorizedErrorfKeepsCause(t *testing.T) {
	err := CategorizedErrorf(categories.RemoteCall, "bulk call failed: %w", errCause)
	require.True(t, xerrors.Is(err, errCause))
	require.Contains(t, err.Error(), "connection reset by peer")

	category, ok := CategoryOf(err)
	require.True(t, ok)
	require.Equal(t, categories.RemoteCall, category)
}

func TestFirstCategoryWins(t *testing.T) {
	inner := CategorizedErrorf(categories.Connection, "endpoint is not readable: %w", errCause)
	outer := CategorizedErrorf(categories.RemoteCall, "unable to init writer: %w", inner)
	require.True(t, IsCategory(outer, categories.Connection))
	require.True(t, xerrors.Is(outer, errCause))
}

func TestUncategorized(t *testing.T) {
	_, ok := CategoryOf(xerrors.Errorf("plain: %w", errCause))
	require.False(t, ok)
	require.False(t, IsCategory(nil, categories.Unsupported))
}
