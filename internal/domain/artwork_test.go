package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestArtworkJSONRoundTrip(t *testing.T) {
	cases := []Artwork{
		{ID: 436535, ImageURL: "https://images.example/wheat.jpg", Title: "Wheat Field with Cypresses", Artist: "Vincent van Gogh", Year: 1889},
		{ID: 7, ImageURL: "https://images.example/7.jpg", Title: "La persistance de la mémoire", Artist: "Salvador Dalí", Year: 1931},
		{ID: 12, ImageURL: "https://images.example/12.jpg", Title: "Amphora", Artist: "Exékias", Year: -540},
		{},
	}
	for _, want := range cases {
		raw, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal(%+v): %v", want, err)
		}
		var got Artwork
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", raw, err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %+v, want %+v (json %s)", got, want, raw)
		}
	}
}

func TestArtworkDecodesLookupPayload(t *testing.T) {
	var a Artwork
	payload := `{"objectID":11417,"primaryImageSmall":"https://images.example/s.jpg","title":"Nature morte","artistDisplayName":"Paul Cézanne","objectBeginDate":-12,"department":"European Paintings"}`
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := Artwork{ID: 11417, ImageURL: "https://images.example/s.jpg", Title: "Nature morte", Artist: "Paul Cézanne", Year: -12}
	if a != want {
		t.Fatalf("got %+v, want %+v", a, want)
	}
}

func TestLabel(t *testing.T) {
	a := Artwork{Title: "Amphora", Artist: "Exékias", Year: -540}
	cases := map[Field]string{
		FieldArtist: "Exékias",
		FieldTitle:  "Amphora",
		FieldYear:   "-540",
		Field("x"):  "",
	}
	for f, want := range cases {
		if got := a.Label(f); got != want {
			t.Fatalf("Label(%s) = %q, want %q", f, got, want)
		}
	}
	if got := (Artwork{Year: 1889}).Label(FieldYear); got != "1889" {
		t.Fatalf("Label(year) = %q", got)
	}
}

func TestScoreRecordGood(t *testing.T) {
	cases := []struct {
		score, max int
		want       bool
	}{
		{score: 15, max: 30, want: true},
		{score: 14, max: 30, want: false},
		{score: 1, max: 3, want: true},
		{score: 0, max: 3, want: false},
		{score: 0, max: 0, want: false},
	}
	for _, tc := range cases {
		r := ScoreRecord{Score: tc.score, MaxScore: tc.max, Date: time.Now()}
		if got := r.Good(); got != tc.want {
			t.Fatalf("Good() for %d/%d = %t, want %t", tc.score, tc.max, got, tc.want)
		}
	}
}

func TestArtworkIDString(t *testing.T) {
	if got := ArtworkID(436535).String(); got != "436535" {
		t.Fatalf("String() = %q", got)
	}
}
