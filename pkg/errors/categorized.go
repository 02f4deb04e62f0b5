package errors

import (
	"github.com/doublecloud/hubwriter/pkg/errors/categories"
	"golang.org/x/xerrors"
)

// Categorized is an error with an attached category
type Categorized interface {
	error
	xerrors.Wrapper

	Category() categories.Category
}

type categorizedImpl struct {
	error
	category categories.Category
}

// CategorizedErrorf produces a xerrors-wrapped error with a given assigned category.
// The first category attached to a chain wins.
func CategorizedErrorf(category categories.Category, format string, a ...any) error {
	errorf := xerrors.Errorf(format, a...)
	var categorized Categorized = nil
	if xerrors.As(errorf, &categorized) {
		return xerrors.Errorf(format, a...) // do not return `errorf` in order to comply with the descriptive errors linter
	}
	return &categorizedImpl{
		error:    errorf,
		category: category,
	}
}

func (i *categorizedImpl) Unwrap() error {
	return i.error
}

func (i *categorizedImpl) Category() categories.Category {
	return i.category
}

// CategoryOf returns the category of the outermost categorized error in the chain.
func CategoryOf(err error) (categories.Category, bool) {
	var categorized Categorized
	if !xerrors.As(err, &categorized) {
		return "", false
	}
	return categorized.Category(), true
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category categories.Category) bool {
	actual, ok := CategoryOf(err)
	return ok && actual == category
}
