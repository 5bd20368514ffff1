package credstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mountedStore(t *testing.T) *Store {
	t.Helper()
	store := New(filepath.Join(t.TempDir(), "int_flash"))
	if err := store.Mount(); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{"typical", Credentials{SSID: "NETGEAR89", Password: "correct horse"}},
		{"open network", Credentials{SSID: "CafeGuest"}},
		{"empty", Credentials{}},
		{"full ssid", Credentials{SSID: strings.Repeat("s", SSIDSize), Password: "pw"}},
		{"full password", Credentials{SSID: "lab", Password: strings.Repeat("p", PasswordSize)}},
		{"both full", Credentials{SSID: strings.Repeat("a", SSIDSize), Password: strings.Repeat("b", PasswordSize)}},
		{"utf8", Credentials{SSID: "Café-5G", Password: "pässwörd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mountedStore(t)

			if err := store.Save(tt.creds); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := store.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got != tt.creds {
				t.Errorf("Load() = %v, want %v", got, tt.creds)
			}
		})
	}
}

func TestStore_RecordLayout(t *testing.T) {
	store := mountedStore(t)

	if err := store.Save(Credentials{SSID: "ab", Password: "xyz"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(data) != RecordSize {
		t.Fatalf("record size = %d, want %d", len(data), RecordSize)
	}
	if string(data[:2]) != "ab" || data[2] != 0 {
		t.Errorf("ssid field = %q, want \"ab\" NUL padded", data[:SSIDSize])
	}
	if string(data[SSIDSize:SSIDSize+3]) != "xyz" || data[SSIDSize+3] != 0 {
		t.Errorf("password field = %q, want \"xyz\" NUL padded", data[SSIDSize:])
	}
}

func TestStore_LoadMissingRecord(t *testing.T) {
	store := mountedStore(t)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.IsZero() {
		t.Errorf("Load() = %v, want zero credentials", got)
	}
}

func TestStore_Unmounted(t *testing.T) {
	store := New(t.TempDir())

	if _, err := store.Load(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Load() error = %v, want ErrUnavailable", err)
	}
	if err := store.Save(Credentials{SSID: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Save() error = %v, want ErrUnavailable", err)
	}
	if err := store.Clear(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Clear() error = %v, want ErrUnavailable", err)
	}
}

func TestStore_MountFailures(t *testing.T) {
	t.Run("no directory configured", func(t *testing.T) {
		store := New("")
		if err := store.Mount(); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Mount() error = %v, want ErrUnavailable", err)
		}
		if store.Mounted() {
			t.Error("Mounted() = true after failed mount")
		}
	})

	t.Run("path is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flash")
		if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
		store := New(path)
		if err := store.Mount(); !errors.Is(err, ErrUnavailable) {
			t.Errorf("Mount() error = %v, want ErrUnavailable", err)
		}
	})

	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		store := New(dir)
		if err := store.Mount(); err != nil {
			t.Fatalf("Mount() error = %v", err)
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("data directory not created: %v", err)
		}
	})
}

func TestStore_ShortRecord(t *testing.T) {
	store := mountedStore(t)

	if err := os.WriteFile(store.Path(), []byte("truncated"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrIO) {
		t.Errorf("Load() error = %v, want ErrIO", err)
	}
}

func TestStore_SaveReplacesWholesale(t *testing.T) {
	store := mountedStore(t)

	if err := store.Save(Credentials{SSID: "long-network-name", Password: "long-passphrase"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(Credentials{SSID: "b"}); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got != (Credentials{SSID: "b"}) {
		t.Errorf("Load() = %v, want only the second record", got)
	}
}

func TestStore_Clear(t *testing.T) {
	store := mountedStore(t)

	if err := store.Clear(); err != nil {
		t.Errorf("Clear() on empty store error = %v", err)
	}
	if err := store.Save(Credentials{SSID: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	got, err := store.Load()
	if err != nil || !got.IsZero() {
		t.Errorf("Load() after Clear = %v, %v; want zero, nil", got, err)
	}
}

func TestNewCredentials(t *testing.T) {
	tests := []struct {
		name     string
		ssid     string
		password string
		wantErr  error
	}{
		{"valid", "home", "secret", nil},
		{"max lengths", strings.Repeat("s", SSIDSize), strings.Repeat("p", PasswordSize), nil},
		{"ssid too long", strings.Repeat("s", SSIDSize+1), "", ErrFieldTooLong},
		{"password too long", "home", strings.Repeat("p", PasswordSize+1), ErrFieldTooLong},
		{"nul in ssid", "ho\x00me", "", ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCredentials(tt.ssid, tt.password)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("NewCredentials() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("NewCredentials() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCredentials_String(t *testing.T) {
	c := Credentials{SSID: "home", Password: "hunter22"}
	if strings.Contains(c.String(), "hunter22") {
		t.Errorf("String() = %q leaks the passphrase", c.String())
	}
}

func TestCredentials_MarshalRejectsLossyFields(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		want  error
	}{
		{"ssid too long", Credentials{SSID: strings.Repeat("s", SSIDSize+5), Password: "p"}, ErrFieldTooLong},
		{"password too long", Credentials{SSID: "home", Password: strings.Repeat("p", PasswordSize+1)}, ErrFieldTooLong},
		{"multi-byte rune across the boundary", Credentials{SSID: strings.Repeat("s", SSIDSize-1) + "é"}, ErrFieldTooLong},
		{"embedded NUL", Credentials{SSID: "ho\x00me"}, ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := tt.creds.MarshalBinary()
			if !errors.Is(err, tt.want) {
				t.Fatalf("MarshalBinary() error = %v, want %v", err, tt.want)
			}
			if rec != nil {
				t.Errorf("MarshalBinary() returned %d bytes alongside an error", len(rec))
			}
		})
	}

	rec, err := Credentials{SSID: strings.Repeat("s", SSIDSize), Password: "p"}.MarshalBinary()
	if err != nil {
		t.Fatalf("full-width ssid: %v", err)
	}
	if len(rec) != RecordSize || rec[SSIDSize] != 'p' {
		t.Errorf("full-width ssid encoded incorrectly")
	}
}

func TestStore_SaveRejectsOverlongField(t *testing.T) {
	store := mountedStore(t)
	if err := store.Save(Credentials{SSID: "home", Password: "pw"}); err != nil {
		t.Fatal(err)
	}

	err := store.Save(Credentials{SSID: strings.Repeat("s", 40)})
	if !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("Save() error = %v, want ErrFieldTooLong", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.SSID != "home" || got.Password != "pw" {
		t.Errorf("Load() after rejected Save = %+v, want previous record", got)
	}
}
