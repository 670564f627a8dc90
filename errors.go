package vds

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/vds/i18n"
)

// Issue codes reported while loading, resolving and editing datasheets.
const (
	CodeMalformedDocument  = "malformed_document"
	CodeUnknownClass       = "unknown_class"
	CodeUnknownMember      = "unknown_member"
	CodeInvalidValue       = "invalid_value"
	CodeDuplicateUUID      = "duplicate_uuid"
	CodeDanglingInstance   = "dangling_instance"
	CodeUnresolvedInstance = "unresolved_instance"
	CodeInvalidReference   = "invalid_reference"
	CodeInvalidParent      = "invalid_parent"
	CodeRecursiveParent    = "recursive_parent"
	CodeBindingVersion     = "binding_version"
)

// Sentinel errors for fatal or rejected operations.
var (
	ErrRootExists        = errors.New("vds: root object already instantiated")
	ErrNoRoot            = errors.New("vds: datasheet has no root object")
	ErrUnknownClass      = errors.New("vds: unknown class")
	ErrUnknownMember     = errors.New("vds: unknown data member")
	ErrMalformedDocument = errors.New("vds: malformed datasheet document")
	ErrInvalidParent     = errors.New("vds: invalid parent datasheet")
	ErrRecursiveParent   = errors.New("vds: recursive parent datasheet")
	ErrInvalidReference  = errors.New("vds: referenced datasheet does not derive from the member class")
	ErrTypeMismatch      = errors.New("vds: value type does not match the data member")
	ErrNotArray          = errors.New("vds: data value is not an array")
	ErrForeignValue      = errors.New("vds: data value belongs to another object")
	ErrNoResources       = errors.New("vds: no resource manager configured")
)

// Issue is a single non-fatal diagnostic.
type Issue struct {
	Path    string // "<uuid>/<member>[index]" or the datasheet id.
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional detail such as the offending value.
	Cause   error  // Optional: underlying error.
}

func newIssue(path, code, hint string, cause error) Issue {
	return Issue{Path: path, Code: code, Message: i18n.T(code, nil), Hint: hint, Cause: cause}
}

// Advisory reports whether the issue leaves the document's meaning intact:
// a binding version change or data for a member the binding dropped.
func (it Issue) Advisory() bool {
	return it.Code == CodeBindingVersion || it.Code == CodeUnknownMember
}

// Issues is a collection of diagnostics that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
		if it.Hint != "" {
			fmt.Fprintf(b, " (%s)", it.Hint)
		}
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Has reports whether any issue carries code.
func (iss Issues) Has(code string) bool {
	for _, it := range iss {
		if it.Code == code {
			return true
		}
	}
	return false
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}
