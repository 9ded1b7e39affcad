// Package coreerr defines the single closed error type used across the
// vault core. Every public operation fails with one of these kinds so
// callers can dispatch on Kind (or use errors.Is against the sentinel
// kind values) instead of matching on message text.
package coreerr

import "fmt"

// Kind is a closed enumeration of error categories. Do not add new
// values without a corresponding entry in spec.md §7.
type Kind int

const (
	KindLocked Kind = iota
	KindIdentityNotInitialized
	KindIdentityAlreadyExists
	KindNotFound
	KindAlreadyExists
	KindNotUnlocked
	KindSecretNotFound
	KindMemberNotFound
	KindAccessDenied
	KindDatabaseError
	KindEncryptionError
	KindDecryptionError
	KindKdfError
	KindInvalidKeyLength
	KindInvalidNonceLength
	KindSerializationError
	KindIoError
	KindSyncError
	KindKeychainError
	KindKeychainKeyMissing
	KindInvalidExportFormat
	KindUnsupportedExportVersion
	KindCryptoError
)

func (k Kind) String() string {
	switch k {
	case KindLocked:
		return "Locked"
	case KindIdentityNotInitialized:
		return "IdentityNotInitialized"
	case KindIdentityAlreadyExists:
		return "IdentityAlreadyExists"
	case KindNotFound:
		return "NotFound"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindNotUnlocked:
		return "NotUnlocked"
	case KindSecretNotFound:
		return "SecretNotFound"
	case KindMemberNotFound:
		return "MemberNotFound"
	case KindAccessDenied:
		return "AccessDenied"
	case KindDatabaseError:
		return "DatabaseError"
	case KindEncryptionError:
		return "EncryptionError"
	case KindDecryptionError:
		return "DecryptionError"
	case KindKdfError:
		return "KdfError"
	case KindInvalidKeyLength:
		return "InvalidKeyLength"
	case KindInvalidNonceLength:
		return "InvalidNonceLength"
	case KindSerializationError:
		return "SerializationError"
	case KindIoError:
		return "IoError"
	case KindSyncError:
		return "SyncError"
	case KindKeychainError:
		return "KeychainError"
	case KindKeychainKeyMissing:
		return "KeychainKeyMissing"
	case KindInvalidExportFormat:
		return "InvalidExportFormat"
	case KindUnsupportedExportVersion:
		return "UnsupportedExportVersion"
	case KindCryptoError:
		return "CryptoError"
	default:
		return "Unknown"
	}
}

// Error is the single error type returned from every public core
// operation. ID carries the offending id/name for kinds that reference
// one (NotFound, AlreadyExists, SecretNotFound, MemberNotFound); it is
// empty otherwise.
type Error struct {
	Kind    Kind
	ID      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.ID != "" && e.Message != "":
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.ID, e.Message)
	case e.ID != "":
		return fmt.Sprintf("%s(%s)", e.Kind, e.ID)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, coreerr.New(KindLocked, "", "")) to match any
// *Error of the same Kind regardless of message/id/cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, id, message string) *Error {
	return &Error{Kind: kind, ID: id, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func WrapID(kind Kind, id, message string, cause error) *Error {
	return &Error{Kind: kind, ID: id, Message: message, Cause: cause}
}

// Sentinel instances for errors.Is comparisons where no id/message is needed.
var (
	ErrLocked                   = New(KindLocked, "", "")
	ErrIdentityNotInitialized   = New(KindIdentityNotInitialized, "", "")
	ErrIdentityAlreadyExists    = New(KindIdentityAlreadyExists, "", "")
	ErrKeychainKeyMissing       = New(KindKeychainKeyMissing, "", "")
	ErrInvalidExportFormat      = New(KindInvalidExportFormat, "", "")
)

func NotFound(id string) *Error        { return New(KindNotFound, id, "") }
func AlreadyExists(name string) *Error { return New(KindAlreadyExists, name, "") }
func NotUnlocked(id string) *Error     { return New(KindNotUnlocked, id, "") }
func SecretNotFound(id string) *Error  { return New(KindSecretNotFound, id, "") }
func MemberNotFound(uuid string) *Error {
	return New(KindMemberNotFound, uuid, "")
}
func AccessDenied(reason string) *Error { return New(KindAccessDenied, "", reason) }
func DatabaseError(msg string, cause error) *Error {
	return Wrap(KindDatabaseError, msg, cause)
}
func UnsupportedExportVersion(v uint16) *Error {
	return New(KindUnsupportedExportVersion, fmt.Sprintf("%d", v), "")
}
func InvalidKeyLength(expected, got int) *Error {
	return New(KindInvalidKeyLength, "", fmt.Sprintf("expected %d, got %d", expected, got))
}
func InvalidNonceLength(expected, got int) *Error {
	return New(KindInvalidNonceLength, "", fmt.Sprintf("expected %d, got %d", expected, got))
}
