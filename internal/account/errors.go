package account

import "errors"

var (
	// ErrSessionExpired means the backend rejected the stored credential.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotSignedIn means no credential is held.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrLoginFailed means the backend refused the email/password pair.
	ErrLoginFailed = errors.New("login failed")
	// ErrNotFound means no stored account exists for the user.
	ErrNotFound = errors.New("account not found")
	// ErrBadTheme means a theme other than light or dark was requested.
	ErrBadTheme = errors.New("theme must be light or dark")
)
