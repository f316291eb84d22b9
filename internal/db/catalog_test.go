package db

import (
	"testing"

	"github.com/legacykeep/chat-store/internal/store"
)

func catalogByName(t *testing.T) map[string]IndexSpec {
	t.Helper()
	byName := map[string]IndexSpec{}
	for _, s := range Catalog {
		if _, ok := byName[s.Name]; ok {
			t.Fatalf("duplicate index name %s", s.Name)
		}
		byName[s.Name] = s
	}
	return byName
}

func TestCatalog_StableNames(t *testing.T) {
	byName := catalogByName(t)

	// These names are migration identifiers; renaming any of them
	// breaks tooling that tracks indexes by name.
	required := []string{
		"idx_message_uuid",
		"idx_chat_room_created_at",
		"idx_sender_created_at",
		"idx_text_search",
		"idx_ttl_self_destruct",
		"idx_view_limits",
		"idx_room_active_messages",
		"idx_room_starred_messages",
		"idx_room_protected_messages",
		"idx_room_media_messages",
		"idx_media_message_created_at",
		"idx_session_id",
		"idx_ttl_sessions",
	}
	for _, name := range required {
		if _, ok := byName[name]; !ok {
			t.Fatalf("catalog is missing %s", name)
		}
	}
}

func TestCatalog_BacksEveryAccessPattern(t *testing.T) {
	byName := catalogByName(t)

	for _, p := range store.MessagePatterns() {
		spec, ok := byName[p.Index]
		if !ok {
			t.Fatalf("pattern %s names unknown index %s", p.Name, p.Index)
		}
		if spec.Collection != CollMessages {
			t.Fatalf("pattern %s is backed by a %s index", p.Name, spec.Collection)
		}
		// The pattern's equality fields must be a prefix of the index
		// key, in order; otherwise the hint would not bound the scan.
		if len(spec.Keys) < len(p.Fields) {
			t.Fatalf("pattern %s has more fields than index %s has keys", p.Name, p.Index)
		}
		for i, f := range p.Fields {
			if spec.Keys[i].Key != f {
				t.Fatalf("pattern %s field %d: index %s has key %s, want %s",
					p.Name, i, p.Index, spec.Keys[i].Key, f)
			}
		}
	}
}

func TestCatalog_UniqueConstraints(t *testing.T) {
	byName := catalogByName(t)

	if !byName["idx_message_uuid"].Unique {
		t.Fatal("idx_message_uuid must be unique")
	}
	if !byName["idx_session_id"].Unique {
		t.Fatal("idx_session_id must be unique")
	}
	for _, s := range Catalog {
		if s.Unique && s.Name != "idx_message_uuid" && s.Name != "idx_session_id" {
			t.Fatalf("unexpected unique index %s", s.Name)
		}
	}
}

func TestCatalog_TTLIndexes(t *testing.T) {
	byName := catalogByName(t)

	for _, name := range []string{"idx_ttl_self_destruct", "idx_ttl_sessions"} {
		s := byName[name]
		if s.ExpireSeconds == nil {
			t.Fatalf("%s must be a TTL index", name)
		}
		if *s.ExpireSeconds != 0 {
			t.Fatalf("%s must expire at the timestamp itself, got %d", name, *s.ExpireSeconds)
		}
		if len(s.Keys) != 1 {
			t.Fatalf("%s: TTL indexes are single-field", name)
		}
	}
}

func TestCatalog_PartialIndexes(t *testing.T) {
	byName := catalogByName(t)

	partials := []string{
		"idx_room_active_messages",
		"idx_room_starred_messages",
		"idx_room_protected_messages",
		"idx_room_media_messages",
	}
	for _, name := range partials {
		if byName[name].Partial == nil {
			t.Fatalf("%s must carry a partial filter expression", name)
		}
	}
	for _, s := range Catalog {
		if s.Partial != nil {
			found := false
			for _, name := range partials {
				if s.Name == name {
					found = true
				}
			}
			if !found {
				t.Fatalf("unexpected partial index %s", s.Name)
			}
		}
	}
}

func TestCatalog_TextIndex(t *testing.T) {
	byName := catalogByName(t)

	s := byName["idx_text_search"]
	if len(s.Keys) != 2 {
		t.Fatalf("text index must cover content and contextWrapper, got %d keys", len(s.Keys))
	}
	for _, k := range s.Keys {
		if k.Value != "text" {
			t.Fatalf("key %s of idx_text_search is not a text key", k.Key)
		}
	}
}

func TestCatalog_CollectionCoverage(t *testing.T) {
	if n := len(CatalogFor(CollMediaFiles)); n != 4 {
		t.Fatalf("media_files must carry 4 indexes, got %d", n)
	}
	if n := len(CatalogFor(CollChatSessions)); n != 4 {
		t.Fatalf("chat_sessions must carry 4 indexes, got %d", n)
	}
	if n := len(CatalogFor(CollMessages)); n == 0 {
		t.Fatal("messages catalog is empty")
	}
	// Nothing in the catalog may point at an unknown collection.
	for _, s := range Catalog {
		switch s.Collection {
		case CollMessages, CollMediaFiles, CollChatSessions:
		default:
			t.Fatalf("index %s targets unknown collection %s", s.Name, s.Collection)
		}
	}
}
