package retrieval

import (
	"fmt"
	"strings"

	"github.com/joelkehle/activity-concierge/internal/store"
)

// FormatEventCard renders one event as a markdown bullet card.
func FormatEventCard(e store.EventRecord) string {
	return fmt.Sprintf(
		"- **%s** (%s) — %s, %s @ %s\n"+
			"  - Age: %s\n"+
			"  - When: %s | %s | %s\n"+
			"  - Instructor: %s | Spots: %s\n"+
			"  - Source: %s\n",
		e.EventName, e.EventType, e.City, e.State, e.CenterName,
		e.AgeContains,
		e.DateRange, e.TimeSlots, e.Duration,
		e.Instructor, e.Spots,
		e.Source,
	)
}

// BuildContextBlock assembles the grounded context handed to the answer
// step: the retrieved event cards followed by the chosen activity-type
// definitions. With no events the block still carries the definitions.
func BuildContextBlock(events []store.EventRecord, defs []store.ActivityRecord) string {
	parts := []string{"## Retrieved Events\n"}
	for _, e := range events {
		parts = append(parts, FormatEventCard(e))
	}
	if len(defs) > 0 {
		parts = append(parts, "\n## Activity Definitions\n")
		for _, d := range defs {
			parts = append(parts, fmt.Sprintf("- Source: %s | Section: %s\n%s\n", d.Source, d.Heading, d.Content))
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
