package content

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// dedupeIDs makes cue ids unique within a lesson. Repeats get a counter plus
// a short token. The token is a digest of the cue's position rather than a
// random value so a reloaded course produces the same ids and hydrated
// progress still lines up.
func dedupeIDs(lessonID string, cues []Cue) {
	seen := make(map[string]int, len(cues))
	for i := range cues {
		seen[cues[i].ID]++
	}
	used := make(map[string]bool, len(cues))
	counts := make(map[string]int, len(cues))
	for i := range cues {
		id := cues[i].ID
		if !used[id] {
			used[id] = true
			continue
		}
		for {
			counts[id]++
			candidate := fmt.Sprintf("%s-%d-%s", id, counts[id], shortToken(lessonID, id, counts[id], i))
			if !used[candidate] && seen[candidate] == 0 {
				cues[i].ID = candidate
				used[candidate] = true
				break
			}
		}
	}
}

func shortToken(lessonID, id string, counter, position int) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d\x00%d", lessonID, id, counter, position)))
	return hex.EncodeToString(sum[:3])
}
