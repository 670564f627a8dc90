package vds

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Options configures load and save behavior.
type Options struct {
	// KeepDeprecatedData writes values of unknown members back on save.
	// When false they are dropped silently.
	KeepDeprecatedData bool
	// SkipMigration disables the in-memory upgrade of older documents on load.
	SkipMigration bool
}

// ObjectKind tells how a datasheet owns an object.
type ObjectKind int

const (
	KindRoot     ObjectKind = iota // The datasheet's single root object.
	KindInstance                   // Reachable by uuid from an ObjectInstance value.
	KindOverride                   // Local copy shadowing an inherited instance.
)

func (k ObjectKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindInstance:
		return "instance"
	case KindOverride:
		return "override"
	}
	return "unknown"
}

// NewUUID returns a random uuid as 32 lowercase hex digits.
func NewUUID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
