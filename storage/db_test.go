package storage

import (
	"errors"
	"testing"
)

func TestMemDBPutGetDelete(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil || string(value) != "v" {
		t.Fatalf("get: %q %v", value, err)
	}
	ok, err := db.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("has: %v %v", ok, err)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemDBIteratorRange(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	for _, k := range []string{"a1", "a2", "b1", "b2", "c1"} {
		if err := db.Put([]byte(k), []byte(k)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	it := db.NewIterator(&Range{Start: []byte("a2"), Limit: []byte("c")})
	defer it.Release()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	want := []string{"a2", "b1", "b2"}
	if len(keys) != len(want) {
		t.Fatalf("got %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("got %v, want %v", keys, want)
		}
	}
}

func TestMemDBIteratorSnapshot(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	it := db.NewIterator(nil)
	defer it.Release()
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !it.Next() || string(it.Key()) != "k" {
		t.Fatalf("iterator must see the snapshot")
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, err := db.Get([]byte("k"))
	if err != nil || string(value) != "v" {
		t.Fatalf("get: %q %v", value, err)
	}
	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPrefixRange(t *testing.T) {
	db := NewMemDB()
	inside := [][]byte{{'a', 0xff, 0x01}, {'a', 0xff, 0xff}}
	outside := [][]byte{{'a', 0xfe, 0xff}, {'b', 0x00}}
	for _, k := range append(inside, outside...) {
		if err := db.Put(k, []byte{1}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	// a prefix ending in 0xff must carry into the preceding byte
	it := db.NewIterator(PrefixRange([]byte{'a', 0xff}))
	defer it.Release()
	var got int
	for it.Next() {
		if it.Key()[0] != 'a' || it.Key()[1] != 0xff {
			t.Fatalf("key %x outside prefix", it.Key())
		}
		got++
	}
	if got != len(inside) {
		t.Fatalf("matched %d keys, want %d", got, len(inside))
	}

	if r := PrefixRange([]byte{0xff, 0xff}); r.Limit != nil {
		t.Fatalf("all-0xff prefix must leave the bound open, got %x", r.Limit)
	}
	if r := PrefixRange([]byte{'a', 0xff}); string(r.Limit) != "b" {
		t.Fatalf("limit %x", r.Limit)
	}
}
