package storage

import "testing"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if !s.Save("theme", "dark", false) {
		t.Fatal("Save returned false")
	}

	got, ok := s.Load("theme", false)
	if !ok {
		t.Fatal("Load: key absent after Save")
	}
	if got != "dark" {
		t.Errorf("Load = %q, want %q", got, "dark")
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := openTestStore(t)

	s.Save("font_size", "small", false)
	s.Save("font_size", "large", false)

	got, _ := s.Load("font_size", false)
	if got != "large" {
		t.Errorf("Load after overwrite = %q, want %q", got, "large")
	}
}

func TestLoadAbsentKey(t *testing.T) {
	s := openTestStore(t)

	if v, ok := s.Load("never_saved", false); ok {
		t.Errorf("Load(absent) = (%q, true), want ok=false", v)
	}
}

func TestRemove(t *testing.T) {
	s := openTestStore(t)

	s.Save("prompt", "text", false)
	if !s.Remove("prompt") {
		t.Fatal("Remove returned false")
	}
	if _, ok := s.Load("prompt", false); ok {
		t.Error("key still present after Remove")
	}

	// Removing an absent key is still a success.
	if !s.Remove("prompt") {
		t.Error("Remove(absent) returned false")
	}
}

func TestObscuredSaveLoad(t *testing.T) {
	s := openTestStore(t)

	s.Save("github_token", "ghp_secret", true)

	// The raw stored value must not be the plain token.
	raw, ok := s.Load("github_token", false)
	if !ok {
		t.Fatal("raw load failed")
	}
	if raw == "ghp_secret" {
		t.Error("obscured value stored as plain text")
	}

	got, _ := s.Load("github_token", true)
	if got != "ghp_secret" {
		t.Errorf("revealed value = %q, want %q", got, "ghp_secret")
	}
}

// A value that was never obscured should come back raw when read with
// obscure set, not vanish: decode tolerance for corrupted state.
func TestLoadObscureDecodeFailure(t *testing.T) {
	s := openTestStore(t)

	s.Save("gemini_api_key", "not-base64!!", false)

	got, ok := s.Load("gemini_api_key", true)
	if !ok {
		t.Fatal("Load returned ok=false")
	}
	if got != "not-base64!!" {
		t.Errorf("Load = %q, want raw value back", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	s := openTestStore(t)

	in := []string{"[button]#submit", "[div].card"}
	if !s.SaveJSON("selected_elements", in) {
		t.Fatal("SaveJSON returned false")
	}

	var out []string
	if !s.LoadJSON("selected_elements", &out) {
		t.Fatal("LoadJSON returned false")
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("LoadJSON = %v, want %v", out, in)
	}
}

func TestLoadJSONAbsentAndCorrupt(t *testing.T) {
	s := openTestStore(t)

	var out []string
	if s.LoadJSON("chat_history", &out) {
		t.Error("LoadJSON(absent) = true, want false")
	}

	s.Save("chat_history", "{not json", false)
	if s.LoadJSON("chat_history", &out) {
		t.Error("LoadJSON(corrupt) = true, want false")
	}
}
