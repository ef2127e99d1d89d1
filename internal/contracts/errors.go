package contracts

import "errors"

// ⭐ SSOT: 품질 엔진 에러 분류는 여기서만
var (
	// ErrQueryFailure means a monitored table could not be read; that table is skipped for the run
	ErrQueryFailure = errors.New("quality: query failure")

	// ErrStoreWrite means the metric or issue store rejected a write
	ErrStoreWrite = errors.New("quality: store write failure")

	// ErrInvalidStateTransition is returned by resolve/ignore on a non-OPEN issue
	ErrInvalidStateTransition = errors.New("quality: invalid issue state transition")

	// ErrIssueNotFound is returned when an issue id does not exist
	ErrIssueNotFound = errors.New("quality: issue not found")

	// ErrShutdownTimeout means stop could not confirm the in-flight scan finished in time
	ErrShutdownTimeout = errors.New("quality: shutdown timeout")

	// ErrAlertDelivery means an alert sink failed; logged only
	ErrAlertDelivery = errors.New("quality: alert delivery failure")
)
