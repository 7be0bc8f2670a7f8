package errors

import (
	"errors"
	"fmt"
)

var (
	// Storage errors 💾
	ErrStorage  = errors.New("❌ durable storage unavailable or transaction failed")
	ErrNotFound = errors.New("❌ theme not found")

	// ErrQuotaExceeded wraps ErrStorage: callers that only care about "the
	// write failed" can match ErrStorage once, callers that want to offer a
	// retry ("storage full — try smaller images") match this one.
	ErrQuotaExceeded = fmt.Errorf("%w: storage quota exceeded", ErrStorage)

	// Asset errors 🖼️
	ErrImageLoad   = errors.New("❌ image could not be decoded")
	ErrImageEncode = errors.New("❌ image could not be re-encoded")

	// Spec errors 📦
	ErrMalformedSpec = errors.New("❌ theme manifest is not a usable object")

	// Export errors 🚀
	ErrExportCancelled = errors.New("❌ export cancelled")
)

// IsQuota reports whether err is the quota variant of a storage failure.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// Is re-exports errors.Is so callers of this package don't need both imports.
func Is(err, target error) bool { return errors.Is(err, target) }
