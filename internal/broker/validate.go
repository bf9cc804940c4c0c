package broker

import (
	"regexp"

	"github.com/questgate/authbroker/internal/constants"
)

var emailPattern = regexp.MustCompile(constants.EmailPattern)

// ValidateUsername reports whether username is non-empty, within the
// length limit, and made entirely of accepted characters.
func ValidateUsername(username string) error {
	if username == "" {
		return newErr(KindNoUsername, nil)
	}
	if len(username) >= constants.MaxUsernameLength {
		return rejectErr(1, "username too long")
	}
	for _, r := range username {
		if !constants.IsNameAcceptable(r) {
			return rejectErr(2, "username contains an unacceptable character")
		}
	}
	return nil
}

// ValidatePassword reports whether password is non-empty, within the
// length limit, and made entirely of accepted characters.
func ValidatePassword(password string) error {
	if password == "" {
		return newErr(KindNoPassword, nil)
	}
	if len(password) >= constants.MaxPasswordLength {
		return rejectErr(3, "password too long")
	}
	for _, r := range password {
		if !constants.IsPasswordAcceptable(r) {
			return rejectErr(4, "password contains an unacceptable character")
		}
	}
	return nil
}

// ValidateEmail reports whether email matches the accepted address
// pattern.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return rejectErr(5, "email address is not well-formed")
	}
	return nil
}

// VersionGate reports whether a client advertising (major, minor,
// revision) must be rejected. This reproduces the upstream gate exactly:
// a client is rejected only when it is strictly below the server on ALL
// THREE components. A client that is behind on major but ahead on minor,
// for instance, is accepted — see DESIGN.md for why this is kept as-is
// rather than "fixed".
func VersionGate(major, minor, revision int) bool {
	below := major < constants.AppMajor &&
		minor < constants.AppMinor &&
		revision < constants.AppRevision
	return below
}
