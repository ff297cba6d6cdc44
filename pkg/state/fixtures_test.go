package state_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	prefs "github.com/goliatone/go-prefs"
)

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("failed to locate fixture directory")
	}
	fixturePath := filepath.Join(filepath.Dir(filename), "..", "..", "testdata", name)
	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", fixturePath, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", fixturePath, err)
	}
	return out
}

type fixtureNode struct {
	Booleans map[string]bool        `json:"booleans"`
	Bytes    map[string]uint8       `json:"bytes"`
	Shorts   map[string]int16       `json:"shorts"`
	Integers map[string]int32       `json:"integers"`
	Longs    map[string]int64       `json:"longs"`
	Strings  map[string]string      `json:"strings"`
	Children map[string]fixtureNode `json:"children"`
}

func (f fixtureNode) build(t *testing.T) *prefs.Node {
	t.Helper()
	n := prefs.NewNode()
	for k, v := range f.Booleans {
		mustNoErr(t, n.SetBoolean(k, v))
	}
	for k, v := range f.Bytes {
		mustNoErr(t, n.SetByte(k, v))
	}
	for k, v := range f.Shorts {
		mustNoErr(t, n.SetShort(k, v))
	}
	for k, v := range f.Integers {
		mustNoErr(t, n.SetInteger(k, v))
	}
	for k, v := range f.Longs {
		mustNoErr(t, n.SetLong(k, v))
	}
	for k, v := range f.Strings {
		mustNoErr(t, n.SetString(k, v))
	}
	for k, child := range f.Children {
		mustNoErr(t, n.SetChildObject(k, child.build(t)))
	}
	return n
}

func mustNoErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
