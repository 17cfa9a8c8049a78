package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hyena-release/internal/failure"
)

const (
	shaA = "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"
	shaB = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

func TestParse(t *testing.T) {
	input := "# historical releases\n" +
		shaA + "  hyena-cp-20250501-1111111-x86_64-linux\n" +
		"\n" +
		strings.ToUpper(shaB) + " *hyena-cp-20250601-abc1234-arm64-darwin\r\n"

	l, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, l.Entries, 2)

	e, ok := l.Lookup("hyena-cp-20250601-abc1234-arm64-darwin")
	require.True(t, ok)
	assert.Equal(t, shaB, e.SHA256)

	_, ok = l.Lookup("hyena-cp-20250601-abc1234-x86_64-linux")
	assert.False(t, ok, "lookup must match the exact filename")
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]string{
		"single space":   shaA + " hyena-x\n",
		"short digest":   shaA[:10] + "  hyena-x\n",
		"no filename":    shaA + "  \n",
		"no separator":   shaA + "\n",
		"non-hex digest": strings.Repeat("z", 64) + "  hyena-x\n",
		"duplicate name": shaA + "  hyena-x\n" + shaB + "  hyena-x\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(input))
			require.Error(t, err)
			assert.Equal(t, failure.CodeLedgerMalformed, failure.CodeOf(err))
			assert.Contains(t, err.Error(), "line ")
		})
	}
}

func TestParseEmpty(t *testing.T) {
	l, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, l.Entries)
}

func TestNewRejectsDuplicatesAndBadDigests(t *testing.T) {
	_, err := New(Entry{SHA256: shaA, Name: "a"}, Entry{SHA256: shaB, Name: "a"})
	assert.Error(t, err)

	_, err = New(Entry{SHA256: "deadbeef", Name: "a"})
	assert.Error(t, err)

	_, err = New(Entry{SHA256: shaA, Name: "a\nb"})
	assert.Error(t, err)
}

func TestUpsert(t *testing.T) {
	l, err := New(Entry{SHA256: shaA, Name: "a"}, Entry{SHA256: shaA, Name: "b"})
	require.NoError(t, err)

	replaced := l.Upsert(Entry{SHA256: shaB, Name: "a"})
	assert.Equal(t, []Entry{{SHA256: shaB, Name: "a"}, {SHA256: shaA, Name: "b"}}, replaced.Entries)

	appended := l.Upsert(Entry{SHA256: shaB, Name: "c"})
	assert.Len(t, appended.Entries, 3)
	assert.Len(t, l.Entries, 2, "upsert must not mutate the receiver")
}

func TestFormatGolden(t *testing.T) {
	l, err := New(
		Entry{SHA256: shaA, Name: "hyena-cp-20250501-1111111-x86_64-linux"},
		Entry{SHA256: shaB, Name: "hyena-cp-20250601-abc1234-arm64-darwin"},
	)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "ledger_format", l.Format())
}

func TestWriteFileThenParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), BuildFile)
	l, err := New(Entry{SHA256: shaA, Name: "hyena-cp-20250601-abc1234-arm64-darwin"})
	require.NoError(t, err)

	require.NoError(t, l.WriteFile(path))
	got, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, l, got)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), PinFile))
	require.Error(t, err)
	assert.True(t, failure.IsConfiguration(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
