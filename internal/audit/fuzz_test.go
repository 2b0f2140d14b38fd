package audit

import (
	"os"
	"path/filepath"
	"testing"
)

// FuzzVerify feeds arbitrary bytes through the chain walker. Whatever the
// input, Verify must return a result instead of panicking, and a verdict
// of valid implies the entry count matches the line count it consumed.
func FuzzVerify(f *testing.F) {
	seedLog := filepath.Join(f.TempDir(), "seed.jsonl")
	l, err := Open(seedLog)
	if err != nil {
		f.Fatal(err)
	}
	for _, decision := range []string{"approved", "rejected", "pending"} {
		l.Record(Entry{Engine: EngineTool, Subject: "command_execute", Decision: decision})
	}
	l.Close()
	chained, _ := os.ReadFile(seedLog)

	f.Add(chained)
	f.Add([]byte{})
	f.Add([]byte(`{"not":"an entry"}` + "\n"))
	f.Add([]byte("not json at all"))
	f.Add([]byte(`{"prev_hash":"` + GenesisHash + `"}` + "\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		path := filepath.Join(t.TempDir(), "fuzz.jsonl")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Skip()
		}

		vr := Verify(path)
		if vr.Valid && vr.Detail != "" {
			t.Errorf("valid result carries detail %q", vr.Detail)
		}
		if !vr.Valid && vr.Detail == "" {
			t.Error("invalid result carries no detail")
		}
	})
}
