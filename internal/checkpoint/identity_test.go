package checkpoint

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyena-release/internal/failure"
	"github.com/roach88/hyena-release/internal/testutil"
)

var identityShape = regexp.MustCompile(`^cp-[0-9]{8}-[0-9a-f]{7}$`)

func TestDerive(t *testing.T) {
	date := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	id, err := Derive(date, Revision{Full: "abc1234def5678abc1234def5678abc1234def56", Short: "abc1234"})
	require.NoError(t, err)
	assert.Equal(t, Identity("cp-20250601-abc1234"), id)
	assert.Regexp(t, identityShape, id.String())
}

func TestDeriveIsStable(t *testing.T) {
	rev := Revision{Short: "0f1e2d3"}
	morning := time.Date(2024, 2, 29, 1, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 2, 29, 22, 30, 0, 0, time.UTC)

	first, err := Derive(morning, rev)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Derive(evening, rev)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDeriveUsesUTCDate(t *testing.T) {
	// 2025-06-02 01:00 in UTC+3 is still 2025-06-01 in UTC.
	zone := time.FixedZone("UTC+3", 3*60*60)
	local := time.Date(2025, 6, 2, 1, 0, 0, 0, zone)
	id, err := Derive(local, Revision{Short: "abc1234"})
	require.NoError(t, err)
	assert.Equal(t, Identity("cp-20250601-abc1234"), id)
}

func TestDeriveLowercasesRevision(t *testing.T) {
	id, err := Derive(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Revision{Short: "ABC1234"})
	require.NoError(t, err)
	assert.Equal(t, Identity("cp-20250102-abc1234"), id)
}

func TestDeriveFallsBackToFullRevision(t *testing.T) {
	id, err := Derive(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), Revision{Full: "deadbeefcafe"})
	require.NoError(t, err)
	assert.Equal(t, Identity("cp-20250102-deadbee"), id)
}

func TestDeriveRejectsBadRevision(t *testing.T) {
	date := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, short := range []string{"", "abc", "abc12345", "xyz1234"} {
		_, err := Derive(date, Revision{Short: short})
		require.Error(t, err, short)
		assert.True(t, failure.IsConfiguration(err), short)
	}
}

func TestDeriveRejectsZeroDate(t *testing.T) {
	_, err := Derive(time.Time{}, Revision{Short: "abc1234"})
	require.Error(t, err)
	assert.Equal(t, failure.CodeInvalidDate, failure.CodeOf(err))
}

func TestParse(t *testing.T) {
	id, err := Parse(" cp-20250601-abc1234\n")
	require.NoError(t, err)
	assert.Equal(t, Identity("cp-20250601-abc1234"), id)
	assert.Equal(t, "abc1234", id.ShortRevision())
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), id.Date())
}

func TestParseRejects(t *testing.T) {
	cases := []string{
		"",
		"cp-2025061-abc1234",
		"cp-20250601-ABC1234",
		"cp-20250601-abc123",
		"cp-20251341-abc1234",
		"v1.2.3",
		"cp-0.0.0-dev",
	}
	for _, c := range cases {
		_, err := Parse(c)
		require.Error(t, err, c)
		assert.Equal(t, failure.CodeInvalidIdentity, failure.CodeOf(err), c)
	}
}

func TestBuildVersion(t *testing.T) {
	assert.Equal(t, "2025.06.01-abc1234", Identity("cp-20250601-abc1234").BuildVersion())
	assert.Equal(t, "", Identity("garbage").BuildVersion())
}

func TestDateFromOverride(t *testing.T) {
	clock := testutil.NewFixedClock(time.Date(2030, 12, 31, 12, 0, 0, 0, time.UTC))

	d, err := DateFromOverride("", clock.Now)
	require.NoError(t, err)
	assert.Equal(t, "20301231", d.Format(DateLayout))

	d, err = DateFromOverride("20250601", clock.Now)
	require.NoError(t, err)
	assert.Equal(t, "20250601", d.Format(DateLayout))

	for _, bad := range []string{"2025-06-01", "2025061", "20251301", "today"} {
		_, err := DateFromOverride(bad, clock.Now)
		require.Error(t, err, bad)
		assert.Equal(t, failure.CodeInvalidDate, failure.CodeOf(err), bad)
	}
}

func TestStaticRevisionSource(t *testing.T) {
	rev, err := StaticRevisionSource{Commit: "ABC1234DEF5678ABC1234DEF5678ABC1234DEF56"}.Revision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc1234def5678abc1234def5678abc1234def56", rev.Full)
	assert.Equal(t, "abc1234", rev.Short)

	_, err = StaticRevisionSource{Commit: "abc"}.Revision(context.Background())
	require.ErrorIs(t, err, ErrNoRevision)

	_, err = StaticRevisionSource{Commit: "not-a-commit-not-a-commit-not-a-commit-x"}.Revision(context.Background())
	require.ErrorIs(t, err, ErrNoRevision)
}

func TestGitRevisionSource(t *testing.T) {
	dir, full := testutil.InitGitRepo(t)

	rev, err := GitRevisionSource{Dir: dir}.Revision(context.Background())
	require.NoError(t, err)
	assert.Equal(t, full, rev.Full)
	assert.Equal(t, full[:7], rev.Short)

	id, err := Derive(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), rev)
	require.NoError(t, err)
	assert.Equal(t, Identity("cp-20250601-"+full[:7]), id)
}

func TestGitRevisionSourceOutsideCheckout(t *testing.T) {
	testutil.RequireGit(t)

	_, err := GitRevisionSource{Dir: t.TempDir()}.Revision(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoRevision)
	assert.True(t, failure.IsConfiguration(err))
}
