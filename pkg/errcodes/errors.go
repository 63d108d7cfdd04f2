package errcodes

import (
	"fmt"
	"net/http"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

// Is matches on Code alone so callers can test for a class of error, e.g.
// errors.Is(err, errcodes.StorageUnavailable("")), without knowing the
// message it was created with.
func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Code == err.Code
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		"not_found",
	}
}

// StorageUnavailable is returned when the local datastore can't be opened or
// has stopped accepting reads and writes. It is never retried silently.
func StorageUnavailable(reason string) error {
	msg := "Library storage is unavailable."
	if reason != "" {
		msg = fmt.Sprintf("Library storage is unavailable: %s.", reason)
	}
	return &Error{
		http.StatusServiceUnavailable,
		msg,
		"storage_unavailable",
	}
}

// UnsupportedFileType is returned by the importer before a record is created
// for a file whose extension isn't a recognized ebook format.
func UnsupportedFileType(fileName string) error {
	return &Error{
		http.StatusUnsupportedMediaType,
		fmt.Sprintf("%q is not a supported ebook file.", fileName),
		"unsupported_file_type",
	}
}

func Locked() error {
	return &Error{
		http.StatusLocked,
		"The library is locked.",
		"locked",
	}
}

func TooManyAttempts() error {
	return &Error{
		http.StatusTooManyRequests,
		"Too many failed unlock attempts. Try again later.",
		"too_many_attempts",
	}
}

func InvalidPasscode() error {
	return &Error{
		http.StatusUnauthorized,
		"Invalid passcode.",
		"invalid_passcode",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		http.StatusUnsupportedMediaType,
		"Unsupported Media Type",
		"unsupported_media_type",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Unknown Parameter %q", param),
		"unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		http.StatusBadRequest,
		"Malformed Payload",
		"malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		http.StatusBadRequest,
		"Request body can't be empty.",
		"empty_request_body",
	}
}
