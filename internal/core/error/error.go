package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// LoadErrorMessage is reported when the dataset cannot be loaded.
	LoadErrorMessage = "dataset load failed"
	// ComputeErrorMessage is reported when an analytical tool fails.
	ComputeErrorMessage = "computation failed"
	// ReasoningErrorMessage is reported when the reasoning collaborator fails.
	ReasoningErrorMessage = "analysis failed"
	// InvalidInputMessage is reported for rejected caller input.
	InvalidInputMessage = "invalid request"
)

// Stage names the pipeline stage an error originated from.
type Stage string

const (
	StageLoad      Stage = "load"
	StageCompute   Stage = "compute"
	StageReasoning Stage = "reasoning"
	StageStorage   Stage = "storage"
	StageRequest   Stage = "request"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermission       = errors.New("permission denied")
	ErrParse            = errors.New("parse error")
	ErrColumnNotFound   = errors.New("unable to identify columns")
	ErrAmbiguousColumn  = errors.New("ambiguous column")
	ErrEmptyData        = errors.New("no data")
	ErrDivisionByZero   = errors.New("division by zero")
	ErrInsufficientData = errors.New("insufficient data")
	ErrUnknownVariant   = errors.New("unknown analysis variant")
	ErrUnknownAnalysis  = errors.New("unknown analysis type")
	ErrInvalidInput     = errors.New("invalid input")
	ErrReasoning        = errors.New("reasoning failed")
)

// AppError wraps an underlying error with an HTTP status, the failing stage and a safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
	Stage   Stage
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Stagef builds an error of the given kind for a pipeline stage. The formatted
// detail is appended to the kind so errors.Is(err, kind) holds.
func Stagef(stage Stage, kind error, format string, args ...any) *AppError {
	detail := fmt.Sprintf(format, args...)
	var err error
	if detail == "" {
		err = kind
	} else {
		err = fmt.Errorf("%w: %s", kind, detail)
	}
	return &AppError{
		Err:     err,
		Status:  statusFor(kind),
		Message: messageFor(stage),
		Stage:   stage,
	}
}

// Load builds a load-stage error.
func Load(kind error, format string, args ...any) *AppError {
	return Stagef(StageLoad, kind, format, args...)
}

// Compute builds a compute-stage error.
func Compute(kind error, format string, args ...any) *AppError {
	return Stagef(StageCompute, kind, format, args...)
}

// Reasoning wraps a failure of the reasoning collaborator. The cause is kept
// for logs but never surfaces through PublicMessage.
func Reasoning(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %v", ErrReasoning, cause),
		Status:  http.StatusBadGateway,
		Message: ReasoningErrorMessage,
		Stage:   StageReasoning,
	}
}

// Invalid builds a request-stage error for rejected input.
func Invalid(kind error, format string, args ...any) *AppError {
	return Stagef(StageRequest, kind, format, args...)
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// Detail returns the kind-qualified description without the stage prefix.
func Detail(err error) string {
	var ae *AppError
	if errors.As(err, &ae) && ae.Err != nil {
		return ae.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// StageOf reports the stage recorded on err, or "" when err is not an AppError.
func StageOf(err error) Stage {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Stage
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, defaulting to 500.
func StatusOf(err error) int {
	var ae *AppError
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

var kinds = []error{
	ErrNotFound, ErrPermission, ErrParse, ErrColumnNotFound, ErrAmbiguousColumn,
	ErrEmptyData, ErrDivisionByZero, ErrInsufficientData, ErrUnknownVariant,
	ErrUnknownAnalysis, ErrInvalidInput, ErrReasoning,
}

var kindNames = map[error]string{
	ErrNotFound:         "not_found",
	ErrPermission:       "permission",
	ErrParse:            "parse",
	ErrColumnNotFound:   "column_not_found",
	ErrAmbiguousColumn:  "ambiguous_column",
	ErrEmptyData:        "empty_data",
	ErrDivisionByZero:   "division_by_zero",
	ErrInsufficientData: "insufficient_data",
	ErrUnknownVariant:   "unknown_variant",
	ErrUnknownAnalysis:  "unknown_analysis",
	ErrInvalidInput:     "invalid_input",
	ErrReasoning:        "reasoning",
}

// KindName returns a stable snake_case name for the kind of err, or "internal".
func KindName(err error) string {
	if k := KindOf(err); k != nil {
		return kindNames[k]
	}
	return "internal"
}

// StatusForKindName maps a name returned by KindName back to an HTTP status.
func StatusForKindName(name string) int {
	for k, n := range kindNames {
		if n == name {
			return statusFor(k)
		}
	}
	return http.StatusInternalServerError
}

// KindOf returns the first known kind err matches, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// IsBenign reports whether err is a no-op condition (nothing to compute) rather
// than a sign of malformed data.
func IsBenign(err error) bool {
	return errors.Is(err, ErrEmptyData) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrUnknownVariant)
}

// PublicMessage renders err for end users: it names the failing stage and
// drops internal causes of reasoning and storage failures.
func PublicMessage(err error) string {
	var ae *AppError
	if !errors.As(err, &ae) {
		return SystemErrorMessage
	}
	switch ae.Stage {
	case StageReasoning, StageStorage, "":
		return ae.Message
	default:
		if k := KindOf(ae); k != nil {
			return fmt.Sprintf("%s: %s", ae.Message, Detail(ae))
		}
		return ae.Message
	}
}

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, ErrPermission):
		return http.StatusForbidden
	case errors.Is(kind, ErrInvalidInput), errors.Is(kind, ErrUnknownAnalysis), errors.Is(kind, ErrUnknownVariant):
		return http.StatusBadRequest
	case errors.Is(kind, ErrReasoning):
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func messageFor(stage Stage) string {
	switch stage {
	case StageLoad:
		return LoadErrorMessage
	case StageCompute:
		return ComputeErrorMessage
	case StageReasoning:
		return ReasoningErrorMessage
	case StageStorage:
		return RedisErrorMessage
	case StageRequest:
		return InvalidInputMessage
	default:
		return SystemErrorMessage
	}
}
