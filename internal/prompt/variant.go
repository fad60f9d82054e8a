// Package prompt turns a contact row into the messages sent to the model.
// Everything here is pure: the same row and event context always produce
// the same messages.
package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mcao2/contact-enrich/internal/llm"
	"github.com/mcao2/contact-enrich/internal/table"
)

// Column names used by the built-in variants.
const (
	ColLinkedInURL        = "Personal Linkedin URL"
	ColFirstName          = "First Name"
	ColLastName           = "Last Name"
	ColJobTitle           = "Job Title"
	ColCompanyName        = "Company Name"
	ColCompanyDescription = "Company Description"
)

// DefaultVariant is used when nothing else is configured.
const DefaultVariant = "linkedin-intro"

// ErrUnknownVariant is returned by Lookup for names not in the registry.
var ErrUnknownVariant = errors.New("unknown variant")

// EventContext holds the run-level parameters applied to every row.
type EventContext struct {
	Topics  []string
	Virtual bool
}

// Variant is one prompt recipe: the columns it reads, the text it builds
// and where the answer goes.
type Variant struct {
	Name            string
	Description     string
	RequiredColumns []string
	OutputColumn    string
	OutputFile      string
	// TopicLimit is how many event topics the prompt uses; 0 means none.
	TopicLimit  int
	System      string
	Temperature float64
	MaxTokens   int

	// user renders the user message; topics is already cut to TopicLimit.
	user func(rec table.Record, ec EventContext, topics string) string
}

// Build returns the messages for one row.
func (v Variant) Build(rec table.Record, ec EventContext) []llm.Message {
	var msgs []llm.Message
	if v.System != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: v.System})
	}
	var topics string
	if v.UsesTopics() {
		topics = topicPhrase(ec.Topics, v.TopicLimit)
	}
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: v.user(rec, ec, topics)})
}

// Request wraps Build with the variant's sampling parameters.
func (v Variant) Request(rec table.Record, ec EventContext) llm.Request {
	return llm.Request{
		Messages:    v.Build(rec, ec),
		Temperature: v.Temperature,
		MaxTokens:   v.MaxTokens,
	}
}

// MissingColumns lists required columns absent from header, in declaration order.
func (v Variant) MissingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, c := range v.RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// UsesTopics reports whether the event topic list affects the prompt.
func (v Variant) UsesTopics() bool { return v.TopicLimit > 0 }

// topicPhrase renders the first limit topics, or FallbackTopics when there are none.
func topicPhrase(topics []string, limit int) string {
	var picked []string
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			picked = append(picked, t)
		}
	}
	if len(picked) > limit {
		picked = picked[:limit]
	}

	switch len(picked) {
	case 0:
		return FallbackTopics
	case 1:
		return picked[0]
	default:
		return strings.Join(picked[:len(picked)-1], ", ") + " and " + picked[len(picked)-1]
	}
}

func eventFormat(ec EventContext) string {
	if ec.Virtual {
		return virtualFormat
	}
	return inPersonFormat
}

// ParseTopics splits free text on commas, semicolons and newlines, dropping blanks.
func ParseTopics(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })
	var topics []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			topics = append(topics, f)
		}
	}
	return topics
}

var registry = map[string]Variant{
	"linkedin-intro": {
		Name:            "linkedin-intro",
		Description:     "Opening line from a LinkedIn profile URL",
		RequiredColumns: []string{ColLinkedInURL},
		OutputColumn:    "Personalised Intro",
		OutputFile:      "contacts_with_intros.csv",
		Temperature:     0.7,
		user: func(rec table.Record, _ EventContext, _ string) string {
			return fmt.Sprintf(LinkedInIntroTemplate, rec.Get(ColLinkedInURL))
		},
	},
	"profile-intro": {
		Name:        "profile-intro",
		Description: "Opening line from name, role and company, themed on the first two event topics",
		RequiredColumns: []string{
			ColFirstName, ColLastName, ColJobTitle, ColCompanyName, ColCompanyDescription,
		},
		OutputColumn: "Personalised Intro",
		OutputFile:   "contacts_with_intros.csv",
		TopicLimit:   2,
		System:       OutreachSystemPrompt,
		Temperature:  0.7,
		MaxTokens:    120,
		user: func(rec table.Record, ec EventContext, topics string) string {
			return fmt.Sprintf(ProfileIntroTemplate,
				rec.Get(ColFirstName),
				rec.Get(ColLastName),
				rec.Get(ColJobTitle),
				rec.Get(ColCompanyName),
				eventFormat(ec),
				rec.Get(ColCompanyDescription),
				topics,
			)
		},
	},
	"event-invite": {
		Name:        "event-invite",
		Description: "Why-attend hook for the event, using the first three event topics",
		RequiredColumns: []string{
			ColFirstName, ColLastName, ColJobTitle, ColCompanyName, ColCompanyDescription,
		},
		OutputColumn: "Event Hook",
		OutputFile:   "contacts_with_event_hooks.csv",
		TopicLimit:   3,
		System:       OutreachSystemPrompt,
		Temperature:  0.8,
		MaxTokens:    160,
		user: func(rec table.Record, ec EventContext, topics string) string {
			return fmt.Sprintf(EventHookTemplate,
				rec.Get(ColFirstName),
				rec.Get(ColLastName),
				rec.Get(ColJobTitle),
				rec.Get(ColCompanyName),
				eventFormat(ec),
				topics,
				rec.Get(ColCompanyDescription),
			)
		},
	},
}

// Lookup returns the named variant.
func Lookup(name string) (Variant, error) {
	v, ok := registry[name]
	if !ok {
		return Variant{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownVariant, name, strings.Join(Names(), ", "))
	}
	return v, nil
}

// Names returns the registered variant names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Variants returns all registered variants ordered by name.
func Variants() []Variant {
	names := Names()
	out := make([]Variant, len(names))
	for i, name := range names {
		out[i] = registry[name]
	}
	return out
}
