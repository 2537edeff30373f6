package container

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Error kinds. Every failure returned by the container matches exactly one of
// these with errors.Is.
var (
	ErrCircularDependency               = errors.New("circular dependency")
	ErrNoConstructorMatch               = errors.New("no constructor match")
	ErrAmbiguousConstructor             = errors.New("ambiguous constructor")
	ErrUnableToActivate                 = errors.New("unable to activate type")
	ErrCannotResolveService             = errors.New("cannot resolve service")
	ErrCannotResolveTenantService       = errors.New("cannot resolve tenant service")
	ErrArityMismatch                    = errors.New("open generic arity mismatch")
	ErrOpenGenericImplementationMissing = errors.New("open generic implementation missing")
	ErrTypeNotActivatable               = errors.New("type cannot be activated")
	ErrImplementationNotAssignable      = errors.New("implementation not assignable to service")
	ErrConstantTypeMismatch             = errors.New("constant type mismatch")
	ErrConstraintViolation              = errors.New("generic constraint violation")
	ErrScopedInSingleton                = errors.New("scoped service consumed by singleton")
	ErrScopedResolvedFromRoot           = errors.New("scoped service resolved from root")
	ErrDirectScopedResolvedFromRoot     = errors.New("scoped service resolved directly from root")
	ErrObjectDisposed                   = errors.New("object disposed")
	ErrAsyncDisposableOnly              = errors.New("service only supports asynchronous disposal")
	ErrInvalidDescriptor                = errors.New("invalid service descriptor")
	ErrInvalidConstructor               = errors.New("invalid constructor")
	ErrServiceNotRegistered             = errors.New("service not registered")
)

// Error is a container failure. Kind is one of the Err* values; the remaining
// fields carry the data the failure is about.
type Error struct {
	Kind    error
	Service ServiceIdentifier
	// Related is the second type involved: the implementation, the missing
	// dependency or the offending scoped service, depending on Kind.
	Related reflect.Type
	// Path is the build path for circular dependencies, in build order.
	Path   []ServiceIdentifier
	Detail string
	Err    error
}

func newError(kind error, service ServiceIdentifier, format string, args ...any) *Error {
	return &Error{Kind: kind, Service: service, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("container: ")
	if e.Detail != "" {
		b.WriteString(e.Detail)
	} else {
		b.WriteString(e.Kind.Error())
		if e.Service.Type != nil {
			b.WriteString(" for " + e.Service.String())
		}
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// BuildError aggregates every descriptor that failed eager validation.
type BuildError struct {
	Errors []error
}

func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "container: some services are not able to be constructed: " + strings.Join(msgs, "; ")
}

func (e *BuildError) Unwrap() []error { return e.Errors }

// errorKind names the Kind of err for metrics labels; user errors are "user".
func errorKind(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind.Error()
	}
	return "user"
}
