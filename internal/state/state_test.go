package state

import (
	"reflect"
	"strings"
	"testing"
)

type trackerIssueState struct {
	Closed             bool     `json:"closed"`
	BugtrackerName     string   `json:"bugtracker_name"`
	DownloadedComments []string `json:"downloaded_comments"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := trackerIssueState{
		Closed:             false,
		BugtrackerName:     "gl",
		DownloadedComments: []string{"c1", "c2"},
	}

	token, err := Encode("123", "TrackerIssueState", want)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if !strings.HasPrefix(token, "[YWH2BT:S:") || !strings.HasSuffix(token, "]") {
		t.Fatalf("token missing envelope: %q", token)
	}

	var got trackerIssueState
	ok, err := Decode(token, "123", "TrackerIssueState", &got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true for matching key and class")
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeEmbeddedInSurroundingText(t *testing.T) {
	token, _ := Encode("123", "TrackerIssueState", trackerIssueState{BugtrackerName: "gh"})
	text := "Synchronized with GitHub.\n\n" + token + "\n\nDo not edit below this line."

	var got trackerIssueState
	ok, err := Decode(text, "123", "TrackerIssueState", &got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !ok || got.BugtrackerName != "gh" {
		t.Fatalf("expected to recover embedded token, got ok=%v got=%+v", ok, got)
	}
}

func TestDecodeWrongKeyIsNoState(t *testing.T) {
	token, _ := Encode("123", "TrackerIssueState", trackerIssueState{BugtrackerName: "gl"})

	var got trackerIssueState
	ok, err := Decode(token, "456", "TrackerIssueState", &got)
	if err != nil {
		t.Fatalf("Decode with wrong key should not error, got: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when decoding under the wrong report key")
	}
}

func TestDecodeWrongClassIsNoState(t *testing.T) {
	token, _ := Encode("123", "SomeOtherClass", trackerIssueState{BugtrackerName: "gl"})

	ok, err := Decode(token, "123", "TrackerIssueState", &trackerIssueState{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for class name mismatch")
	}
}

func TestDecodeMissingEnvelopeIsNoState(t *testing.T) {
	ok, err := Decode("just a regular comment, no token here", "123", "TrackerIssueState", &trackerIssueState{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when no envelope is present")
	}
}

func TestDifferentReportsDifferentKeys(t *testing.T) {
	key1 := DeriveKey("123")
	key2 := DeriveKey("456")
	if string(key1) == string(key2) {
		t.Fatal("different report ids must derive different keys")
	}
}

// P5 from spec §8: decode(S, k) == input state; decode(S, k') for k' != k
// returns no-state.
func TestP5KeySpecificity(t *testing.T) {
	reports := []string{"1", "2", "999999"}
	for _, r := range reports {
		token, err := Encode(r, "TrackerIssueState", trackerIssueState{BugtrackerName: "jira"})
		if err != nil {
			t.Fatalf("Encode(%s): %v", r, err)
		}
		for _, other := range reports {
			var got trackerIssueState
			ok, err := Decode(token, other, "TrackerIssueState", &got)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if other == r {
				if !ok || got.BugtrackerName != "jira" {
					t.Fatalf("expected successful decode for matching report %s", r)
				}
			} else if ok {
				t.Fatalf("expected no-state decoding report %s's token under report %s's key", r, other)
			}
		}
	}
}
