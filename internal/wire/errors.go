package wire

import "fmt"

// DecodeErrorKind classifies why a wire object could not become a record.
type DecodeErrorKind string

const (
	KindMissingField DecodeErrorKind = "missing_field"
	KindValueMissing DecodeErrorKind = "value_missing"
	KindTypeMismatch DecodeErrorKind = "type_mismatch"
	KindCorrupted    DecodeErrorKind = "corrupted"
	KindUnknown      DecodeErrorKind = "unknown"
)

// DecodeError reports a field-level decoding failure. Field is empty for
// object-level failures (corrupted payloads).
type DecodeError struct {
	Kind   DecodeErrorKind
	Field  string
	Detail string
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case KindMissingField:
		return fmt.Sprintf("missing field: %s", e.Field)
	case KindValueMissing:
		return fmt.Sprintf("missing value for field: %s", e.Field)
	case KindTypeMismatch:
		return fmt.Sprintf("type mismatch on field %s: %s", e.Field, e.Detail)
	case KindCorrupted:
		return fmt.Sprintf("corrupted object: %s", e.Detail)
	default:
		return fmt.Sprintf("decode failed: %s", e.Detail)
	}
}

func missingField(field string) *DecodeError {
	return &DecodeError{Kind: KindMissingField, Field: field}
}

func valueMissing(field string) *DecodeError {
	return &DecodeError{Kind: KindValueMissing, Field: field}
}

func typeMismatch(field, detail string) *DecodeError {
	return &DecodeError{Kind: KindTypeMismatch, Field: field, Detail: detail}
}

func corrupted(detail string) *DecodeError {
	return &DecodeError{Kind: KindCorrupted, Detail: detail}
}
