package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult reports whether a log's hash chain is intact and, when it
// is not, where the first break sits.
type VerifyResult struct {
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries"`
	Line    int    `json:"line,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Verify walks the log at path and checks that every entry's prev_hash is
// the hash of the line before it (genesis for the first). It stops at the
// first break; an empty or absent-tail chain of zero entries is valid.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Detail: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	want := GenesisHash
	n := 0

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
		line := append([]byte(nil), sc.Bytes()...)

		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return VerifyResult{Entries: n, Line: n, Detail: fmt.Sprintf("parse error: %v", err)}
		}
		if e.PrevHash != want {
			return VerifyResult{
				Entries: n,
				Line:    n,
				Detail:  fmt.Sprintf("chain break: prev_hash %s, expected %s", e.PrevHash, want),
			}
		}
		want = ChainHash(line)
	}
	if err := sc.Err(); err != nil {
		return VerifyResult{Entries: n, Detail: fmt.Sprintf("scan: %v", err)}
	}

	return VerifyResult{Valid: true, Entries: n}
}
