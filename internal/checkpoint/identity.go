package checkpoint

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/roach88/hyena-release/internal/failure"
)

// DateLayout is the Go layout of the date segment of an identity.
const DateLayout = "20060102"

// ShortRevisionLen is the fixed width of the abbreviated revision.
const ShortRevisionLen = 7

// Identity is a checkpoint identity: cp-<YYYYMMDD>-<7 hex>.
// The zero value is not a valid identity; use Derive or Parse.
type Identity string

var identityPattern = regexp.MustCompile(`^cp-([0-9]{8})-([0-9a-f]{7})$`)

var shortRevisionPattern = regexp.MustCompile(`^[0-9a-f]{7}$`)

// Derive computes the identity for a build date and revision.
// The date is rendered in UTC. Derive is pure: the same date (to the day) and
// revision always produce the same identity.
func Derive(date time.Time, rev Revision) (Identity, error) {
	short := strings.ToLower(strings.TrimSpace(rev.Short))
	if short == "" && len(rev.Full) >= ShortRevisionLen {
		short = strings.ToLower(rev.Full[:ShortRevisionLen])
	}
	if !shortRevisionPattern.MatchString(short) {
		return "", failure.New(failure.KindConfiguration, failure.CodeNoRevision,
			fmt.Sprintf("short revision %q is not %d lowercase hex characters", rev.Short, ShortRevisionLen))
	}
	if date.IsZero() {
		return "", failure.New(failure.KindConfiguration, failure.CodeInvalidDate, "build date is required")
	}
	return Identity(fmt.Sprintf("cp-%s-%s", date.UTC().Format(DateLayout), short)), nil
}

// Parse validates s as a checkpoint identity.
func Parse(s string) (Identity, error) {
	trimmed := strings.TrimSpace(s)
	m := identityPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", failure.New(failure.KindConfiguration, failure.CodeInvalidIdentity,
			fmt.Sprintf("%q does not match cp-YYYYMMDD-<7 hex>", s))
	}
	if _, err := time.Parse(DateLayout, m[1]); err != nil {
		return "", failure.New(failure.KindConfiguration, failure.CodeInvalidIdentity,
			fmt.Sprintf("%q has an invalid date segment", s))
	}
	return Identity(trimmed), nil
}

// String returns the identity text.
func (id Identity) String() string {
	return string(id)
}

// Date returns the build date segment as a UTC midnight time.
// Returns the zero time if the identity is malformed.
func (id Identity) Date() time.Time {
	m := identityPattern.FindStringSubmatch(string(id))
	if m == nil {
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, m[1])
	if err != nil {
		return time.Time{}
	}
	return t
}

// ShortRevision returns the 7-character revision segment.
func (id Identity) ShortRevision() string {
	m := identityPattern.FindStringSubmatch(string(id))
	if m == nil {
		return ""
	}
	return m[2]
}

// BuildVersion returns the display version handed to the build step,
// YYYY.MM.DD-<short revision>.
func (id Identity) BuildVersion() string {
	m := identityPattern.FindStringSubmatch(string(id))
	if m == nil {
		return ""
	}
	d := m[1]
	return fmt.Sprintf("%s.%s.%s-%s", d[0:4], d[4:6], d[6:8], m[2])
}

// DateFromOverride returns the build date. A non-empty override (YYYYMMDD, as
// in BUILD_DATE) wins over the wall clock.
func DateFromOverride(override string, now func() time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(override)
	if trimmed == "" {
		if now == nil {
			now = time.Now
		}
		return now().UTC(), nil
	}
	if len(trimmed) != len(DateLayout) {
		return time.Time{}, failure.New(failure.KindConfiguration, failure.CodeInvalidDate,
			fmt.Sprintf("build date override %q must be YYYYMMDD", override))
	}
	t, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return time.Time{}, failure.Wrap(err, failure.KindConfiguration, failure.CodeInvalidDate,
			fmt.Sprintf("build date override %q must be YYYYMMDD", override))
	}
	return t, nil
}
