package layout

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/LikhithSP/Knowledge-Tree/internal/roadmap"
)

// Key returns a stable digest of everything a layout depends on: the engine
// mode and configuration, the ordered topic ids and their creation times,
// and the edges touching the roadmap in their given order. Edge order is kept
// because it decides which back-edge of a cycle is reported. Equal keys yield
// equal layouts.
func (e *Engine) Key(topics []roadmap.Topic, edges []roadmap.Edge) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%g|%g|%g|%g|%d\n", e.mode,
		e.cfg.HorizontalSpacing, e.cfg.VerticalSpacing, e.cfg.OriginX, e.cfg.OriginY, e.cfg.Columns)

	known := make(map[string]bool, len(topics))
	for _, t := range topics {
		known[t.ID] = true
		fmt.Fprintf(&b, "t|%s|%d\n", t.ID, t.CreatedAt.UnixNano())
	}

	for _, ed := range edges {
		if known[ed.TopicID] || known[ed.PrerequisiteID] {
			fmt.Fprintf(&b, "e|%s|%s\n", ed.TopicID, ed.PrerequisiteID)
		}
	}

	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
