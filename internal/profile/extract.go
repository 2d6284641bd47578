package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joelkehle/activity-concierge/internal/llm"
)

const extractSystemPrompt = `You are a profile extraction assistant.

Your task:
- Extract structured user preferences from casual chat text.
- Output ONLY valid JSON.
- Do NOT guess.
- If unsure, return null or empty lists.

Allowed fields ONLY:
- location: string | null  (US city/state if present)
- age_focus: kids | teens | young_adults | adults | seniors | null
- interests: list of strings from: aquatics, athletics, dancing, cooking, drawing
- time_prefs: list of strings from: mornings, afternoons, evenings, weekends
- city: string | null (US city if present)
- state: string | null (US state if present)
- budget_sensitivity: low | medium | high | null

Rules:
- Never invent a location.
- Do not add fields not listed.
- If the user mentions multiple age groups, pick the dominant one; otherwise null.`

const extractPromptTemplate = `Existing profile:
%s

Recent user messages (for context):
%s

New user message:
%q

Return ONLY a JSON object with any fields you can confidently update.
If nothing can be updated, return:
{"location": null, "age_focus": null, "interests": [], "time_prefs": [], "city": null, "state": null, "budget_sensitivity": null}`

// Extractor pulls profile updates out of chat messages with an LLM.
type Extractor struct {
	exec *llm.Executor
}

func NewExtractor(exec *llm.Executor) *Extractor {
	return &Extractor{exec: exec}
}

// update mirrors the extraction schema with pointer fields so "null" and
// "absent" both read as nil and never clobber the existing profile.
type update struct {
	Location          *string  `json:"location"`
	AgeFocus          *string  `json:"age_focus"`
	Interests         []string `json:"interests"`
	TimePrefs         []string `json:"time_prefs"`
	City              *string  `json:"city"`
	State             *string  `json:"state"`
	BudgetSensitivity *string  `json:"budget_sensitivity"`
}

func (u update) asProfile() Profile {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return Profile{
		Location:          deref(u.Location),
		AgeFocus:          deref(u.AgeFocus),
		Interests:         u.Interests,
		TimePrefs:         u.TimePrefs,
		City:              deref(u.City),
		State:             deref(u.State),
		BudgetSensitivity: deref(u.BudgetSensitivity),
	}
}

// Extract returns the merged profile after applying whatever the model could
// confidently pull from the new message. A content failure after the retry
// budget is treated as "nothing extracted" and leaves the profile untouched;
// transport failures propagate to the caller.
func (e *Extractor) Extract(ctx context.Context, existing Profile, message string, history [][2]string) (Profile, error) {
	existingJSON, err := json.Marshal(existing)
	if err != nil {
		return existing, fmt.Errorf("marshal existing profile: %w", err)
	}
	recent := RecentUserMessages(history, 4)
	recentBlock := "(none)"
	if len(recent) > 0 {
		recentBlock = "- " + strings.Join(recent, "\n- ")
	}
	prompt := fmt.Sprintf(extractPromptTemplate, existingJSON, recentBlock, message)

	var u update
	if _, err := e.exec.Run(ctx, "profile_extract", extractSystemPrompt, prompt, &u, nil); err != nil {
		var ce *llm.ContentError
		if errors.As(err, &ce) {
			log.Printf("profile extract_unusable err=%q", err.Error())
			return existing, nil
		}
		return existing, err
	}
	return Merge(existing, u.asProfile()), nil
}
