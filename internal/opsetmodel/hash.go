package opsetmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// changeHash computes a deterministic content hash for a change. The real
// binary codec (out of scope here, see spec.md §1/§6) owns the canonical
// byte-for-byte hash of an encoded change; this is a stand-in that is
// stable across process restarts and sensitive to every field the causal
// graph depends on, which is all the engine itself requires.
func changeHash(c Change) string {
	var b strings.Builder
	fmt.Fprintf(&b, "actor=%s;seq=%d;start=%d;time=%d;msg=%s;", c.Actor, c.Seq, c.StartOp, c.Time, c.Message)

	deps := append([]string(nil), c.Deps...)
	sort.Strings(deps)
	fmt.Fprintf(&b, "deps=%s;", strings.Join(deps, ","))

	for _, op := range c.Ops {
		fmt.Fprintf(&b, "op(%s,%s,%s,%s,%v,%t,%v);",
			op.ID, op.Action, op.Obj, op.Key, op.Value, op.Insert, op.Pred)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
