package richflyer

import (
	"errors"

	"github.com/INFOCITY/richflyer-webpush/internal/channel"
	"github.com/INFOCITY/richflyer-webpush/internal/device"
	"github.com/INFOCITY/richflyer-webpush/internal/eventlog"
	"github.com/INFOCITY/richflyer-webpush/internal/storage"
	"github.com/INFOCITY/richflyer-webpush/internal/token"
)

// ErrNoSubscription indicates no subscription has been installed yet.
var ErrNoSubscription = errors.New("no subscription set")

// Sentinels raised by the component packages, re-exported so hosts can match
// them with errors.Is.
var (
	// ErrIdentityUnavailable: a device identifier could not be derived.
	ErrIdentityUnavailable = device.ErrIdentityUnavailable
	// ErrTokenIssuanceFailed: a bearer token could not be obtained, even
	// after the single re-registration retry.
	ErrTokenIssuanceFailed = token.ErrIssuanceFailed
	// ErrOperationFailed: an authenticated call failed after the single 401
	// retry, or with a non-401 status.
	ErrOperationFailed = channel.ErrOperationFailed
	// ErrAlreadySent: the launch event was already reported for the current
	// notification.
	ErrAlreadySent = eventlog.ErrAlreadySent
	// ErrNoPendingNotification: no notification record exists.
	ErrNoPendingNotification = eventlog.ErrNoPendingNotification
	// ErrUnsupportedEnvironment: the active subscription variant cannot
	// report launch events.
	ErrUnsupportedEnvironment = eventlog.ErrUnsupportedEnvironment
	// ErrRegisterEventLogFailed: the launch-event call failed; the
	// notification stays pending for a later retry.
	ErrRegisterEventLogFailed = eventlog.ErrRegisterFailed
	// ErrStorageUnavailable: the embedded store could not be opened or a
	// transaction failed.
	ErrStorageUnavailable = storage.ErrUnavailable
)
