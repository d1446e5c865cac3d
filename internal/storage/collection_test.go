package storage

import (
	"strings"
	"testing"
)

func TestCollectionKeyFromID(t *testing.T) {
	key := TopicCollectionKey("0191a3c2-7d9e-7c3a-b1f0-3c6f2a9d4e11", "Animals")
	want := "topic_0191a3c2_7d9e_7c3a_b1f0_3c6f2a9d4e11"
	if key != want {
		t.Errorf("TopicCollectionKey: got %q, want %q", key, want)
	}
}

func TestCollectionKeyDeterministic(t *testing.T) {
	a := SetCollectionKey("ABC-123", "Mammals")
	b := SetCollectionKey("ABC-123", "Mammals")
	if a != b {
		t.Errorf("collection key not deterministic: %q vs %q", a, b)
	}
}

func TestCollectionKeyNameFallback(t *testing.T) {
	// An id with no usable characters falls back to the sanitized name.
	key := TopicCollectionKey("---", "Fauna Taxonomy")
	if key != "topic_fauna_taxonomy" {
		t.Errorf("name fallback: got %q", key)
	}
}

func TestCollectionKeyTotal(t *testing.T) {
	// Even with nothing usable at all, the mapping stays total.
	cases := [][2]string{
		{"", ""},
		{"***", "!!!"},
		{"  ", "  "},
	}
	for _, c := range cases {
		key := TopicCollectionKey(c[0], c[1])
		if key != "topic_unnamed" {
			t.Errorf("TopicCollectionKey(%q, %q): got %q, want topic_unnamed", c[0], c[1], key)
		}
	}
}

func TestCollectionKeyIsSQLIdentifier(t *testing.T) {
	keys := []string{
		TopicCollectionKey("0191a3c2-7d9e-7c3a-b1f0-3c6f2a9d4e11", ""),
		SetCollectionKey("", "Große Tiere & Co."),
		SetCollectionKey("id with spaces", ""),
	}
	for _, key := range keys {
		for _, r := range key {
			valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
			if !valid {
				t.Errorf("key %q contains invalid identifier rune %q", key, r)
			}
		}
		if !strings.HasPrefix(key, TopicCollectionPrefix) && !strings.HasPrefix(key, SetCollectionPrefix) {
			t.Errorf("key %q missing kind prefix", key)
		}
	}
}
