package ics

import (
	"fmt"
	"strings"

	"calassist/internal/models"
)

// DefaultProdID is written into every envelope unless configured otherwise.
const DefaultProdID = "-//calassist//EN"

// Splitter decomposes calendar markup into one standalone document per event.
type Splitter struct {
	ProdID string
	UIDs   UIDGenerator
}

// NewSplitter returns a Splitter writing prodID into its envelopes.
func NewSplitter(prodID string) *Splitter {
	if prodID == "" {
		prodID = DefaultProdID
	}
	return &Splitter{ProdID: prodID}
}

// Split returns one record per VEVENT block in markup, in source order.
//
// Blocks without a UID get a generated one, which is also written into the
// block so the standalone document can be addressed by it later. Generated
// UIDs never collide with another UID of the same batch. Markup without any
// VEVENT comes back as a single pass-through record. Indented property lines
// are moved back to the left margin first.
func (s *Splitter) Split(markup string) []models.SplitEvent {
	normalized := NormalizeNewlines(markup)
	blocks := Blocks(Dedent(normalized))
	if len(blocks) == 0 {
		return []models.SplitEvent{{CalendarDocument: normalized, PassThrough: true}}
	}

	parsed := make([]models.ParsedEvent, len(blocks))
	seen := make(map[string]struct{}, len(blocks))
	for i, block := range blocks {
		parsed[i] = ParseBlock(block)
		if parsed[i].UID != "" {
			seen[parsed[i].UID] = struct{}{}
		}
	}

	out := make([]models.SplitEvent, 0, len(blocks))
	for _, ev := range parsed {
		if ev.UID == "" {
			ev.UID = s.uniqueUID(seen)
			ev.RawBlock = withUID(ev.RawBlock, ev.UID)
		}
		out = append(out, models.SplitEvent{
			ParsedEvent:      ev,
			CalendarDocument: s.Envelope(ev.RawBlock),
		})
	}
	return out
}

// maxUIDAttempts bounds how often the generator is asked again after a
// collision before a counter suffix is used instead.
const maxUIDAttempts = 8

func (s *Splitter) uniqueUID(seen map[string]struct{}) string {
	uid := s.UIDs.Next()
	for i := 1; i < maxUIDAttempts; i++ {
		if _, dup := seen[uid]; !dup {
			break
		}
		uid = s.UIDs.Next()
	}
	base := uid
	for n := 2; ; n++ {
		if _, dup := seen[uid]; !dup {
			seen[uid] = struct{}{}
			return uid
		}
		uid = fmt.Sprintf("%s-%d", base, n)
	}
}

// Envelope wraps a single VEVENT block in a minimal VCALENDAR.
func (s *Splitter) Envelope(block string) string {
	prodID := s.ProdID
	if prodID == "" {
		prodID = DefaultProdID
	}
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\n")
	b.WriteString("VERSION:2.0\n")
	b.WriteString("PRODID:" + prodID + "\n")
	b.WriteString("CALSCALE:GREGORIAN\n")
	b.WriteString(block)
	b.WriteString("\nEND:VCALENDAR")
	return b.String()
}

func withUID(block, uid string) string {
	return strings.Replace(block, "BEGIN:VEVENT", "BEGIN:VEVENT\nUID:"+uid, 1)
}
