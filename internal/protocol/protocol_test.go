package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseRequest(t *testing.T) {
	req, ok := ParseRequest("CliNewPoint@1.5%2.5")
	require.True(t, ok)
	assert.Equal(t, VerbNewPoint, req.Verb)
	assert.Equal(t, "1.5%2.5", req.Param)
	assert.True(t, req.HasParam)
}

func TestParseRequest_SplitsOnFirstSeparator(t *testing.T) {
	req, ok := ParseRequest("CliNewWinner@alice@home")
	require.True(t, ok)
	assert.Equal(t, "CliNewWinner", req.Verb)
	assert.Equal(t, "alice@home", req.Param)
}

func TestParseRequest_NoSeparator(t *testing.T) {
	req, ok := ParseRequest("CliNewPoint")
	require.True(t, ok)
	assert.Equal(t, "CliNewPoint", req.Verb)
	assert.False(t, req.HasParam)
	assert.Equal(t, "CliNewPoint", req.String())
}

func TestParseRequest_EmptyParam(t *testing.T) {
	req, ok := ParseRequest("CliNewPoint@")
	require.True(t, ok)
	assert.True(t, req.HasParam)
	assert.Equal(t, "", req.Param)
}

func TestParseRequest_EmptyVerb(t *testing.T) {
	for _, frame := range []string{"", "@x", "@"} {
		_, ok := ParseRequest(frame)
		assert.False(t, ok, "frame %q", frame)
	}
}

func TestSplitFields(t *testing.T) {
	f, ok := SplitFields("a%1.2.3.4%Alice", 3)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "1.2.3.4", "Alice"}, f)

	_, ok = SplitFields("a%b", 3)
	assert.False(t, ok)

	_, ok = SplitFields("a%b%c%d", 3)
	assert.False(t, ok)
}

func TestNewRequest(t *testing.T) {
	assert.Equal(t, "CliPlayerReady@p1%1", NewRequest(VerbPlayerReady, "p1", "1"))
}

func TestEncodeRoster(t *testing.T) {
	got := EncodeRoster([]RosterEntry{
		{ID: "A", IP: "ipA", Name: "nameA", Seat: 0},
		{ID: "B", IP: "ipB", Name: "nameB", Seat: 1},
		{ID: "C", IP: "ipC", Name: "nameC", Seat: 2},
	})
	assert.Equal(t, "A%ipA%nameA%0|B%ipB%nameB%1|C%ipC%nameC%2", got)
}

func TestEncodeRoster_Empty(t *testing.T) {
	assert.Equal(t, "", EncodeRoster(nil))
}

func TestDecodeRoster_Malformed(t *testing.T) {
	_, ok := DecodeRoster("A%ip%name")
	assert.False(t, ok)
	_, ok = DecodeRoster("A%ip%name%x")
	assert.False(t, ok)
}

func TestPropertyRosterDecodeInvertsEncode(t *testing.T) {
	field := rapid.StringMatching(`[A-Za-z0-9.]{1,12}`)
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		entries := make([]RosterEntry, n)
		for i := range entries {
			entries[i] = RosterEntry{
				ID:   field.Draw(t, "id"),
				IP:   field.Draw(t, "ip"),
				Name: field.Draw(t, "name"),
				Seat: i,
			}
		}
		payload := EncodeRoster(entries)
		if strings.HasPrefix(payload, RecordSep) || strings.HasSuffix(payload, RecordSep) {
			t.Fatalf("payload %q has a dangling record separator", payload)
		}
		got, ok := DecodeRoster(payload)
		if !ok {
			t.Fatalf("payload %q did not decode", payload)
		}
		if len(got) != n {
			t.Fatalf("decoded %d entries, want %d", len(got), n)
		}
		for i := range got {
			if got[i] != entries[i] {
				t.Fatalf("entry %d: got %+v, want %+v", i, got[i], entries[i])
			}
		}
	})
}

func TestPropertyParseKeepsVerb(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		verb := rapid.StringMatching(`[A-Za-z]{1,16}`).Draw(t, "verb")
		param := rapid.String().Draw(t, "param")
		req, ok := ParseRequest(verb + VerbSep + param)
		if !ok {
			t.Fatalf("verb %q rejected", verb)
		}
		if req.Verb != verb || req.Param != param || !req.HasParam {
			t.Fatalf("got %+v for verb %q param %q", req, verb, param)
		}
	})
}
