package firehose

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestBaseLangs(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, "[]"},
		{[]string{"pt-BR"}, "[pt]"},
		{[]string{"en-US", "en-GB", "EN"}, "[en]"},
		{[]string{"zh-Hant-TW", "ja"}, "[zh ja]"},
		{[]string{" de ", ""}, "[de]"},
		{[]string{"Klingon!"}, "[klingon!]"},
	}
	for _, tc := range cases {
		if got := fmt.Sprint(BaseLangs(tc.in)); got != tc.want {
			t.Errorf("BaseLangs(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestPostLangsMatchRequestBase(t *testing.T) {
	rec, err := decodeJSONRecord(CollectionPost, json.RawMessage(`{"$type":"app.bsky.feed.post","text":"bom dia","createdAt":"2024-06-01T12:00:00Z","langs":["pt-BR","pt-PT"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rec.Langs) != 1 || rec.Langs[0] != "pt" {
		t.Fatalf("langs = %q", rec.Langs)
	}
}
