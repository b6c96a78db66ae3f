package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"lessons/l1/a.png":   "lessons/l1/a.png",
		"/lessons//l1/./a.c": "lessons/l1/a.c",
		`lessons\l1\main.c`:  "lessons/l1/main.c",
		"../etc/passwd":      "",
		"lessons/../../x":    "",
		"":                   "",
	}
	for in, want := range cases {
		got, err := CleanKey(in)
		if want == "" {
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("CleanKey(%q) = %q, %v; want ErrInvalidKey", in, got, err)
			}
			continue
		}
		if err != nil || got != want {
			t.Errorf("CleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := LessonAssetKey("l1", "../x"); err == nil {
		t.Errorf("asset name with a slash accepted")
	}
}

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key, _ := LessonAssetKey("l1", "hello.c")
	got, err := s.Put(ctx, key, strings.NewReader("int main(void){}"))
	if err != nil || got != "lessons/l1/hello.c" {
		t.Fatalf("put: %q %v", got, err)
	}
	_, _ = s.Put(ctx, "lessons/l1/diagram.png", strings.NewReader("png"))
	_, _ = s.Put(ctx, "lessons/l2/other.txt", strings.NewReader("x"))

	rc, err := s.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "int main(void){}" {
		t.Fatalf("body = %q", body)
	}

	keys, err := s.List(ctx, "lessons/l1")
	if err != nil || len(keys) != 2 || keys[0] != "lessons/l1/diagram.png" {
		t.Fatalf("list = %v %v", keys, err)
	}
	if empty, err := s.List(ctx, "lessons/none"); err != nil || len(empty) != 0 {
		t.Fatalf("list missing prefix = %v %v", empty, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
	if err := s.Delete(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete twice: %v", err)
	}
}
