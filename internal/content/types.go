package content

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language is one of the closed set of languages the system publishes in.
type Language string

const (
	LangZH Language = "zh"
	LangEN Language = "en"
	LangJA Language = "ja"
)

// Languages lists every supported language.
var Languages = []Language{LangZH, LangEN, LangJA}

// SourcePriority is the fixed scan order used to pick the language to
// translate from when an author supplies several drafts at once. zh first
// because it is the primary authoring language of this system's users.
var SourcePriority = []Language{LangZH, LangJA, LangEN}

func (l Language) Valid() bool {
	return slices.Contains(Languages, l)
}

func (l Language) Tag() language.Tag {
	switch l {
	case LangZH:
		return language.Chinese
	case LangJA:
		return language.Japanese
	default:
		return language.English
	}
}

// DisplayName returns the English name of the language ("Chinese",
// "English", "Japanese") for use in translation prompts.
func (l Language) DisplayName() string {
	return display.English.Languages().Name(l.Tag())
}

// Kind distinguishes the two content types that own translations.
type Kind string

const (
	KindPost    Kind = "post"
	KindProject Kind = "project"
)

func (k Kind) Valid() bool {
	return k == KindPost || k == KindProject
}

// ContentItem is a post or project owning one Translation per language.
type ContentItem struct {
	ID             string    `json:"id"`
	Kind           Kind      `json:"kind"`
	Slug           string    `json:"slug"`
	Status         string    `json:"status"`
	NeedAIGenerate bool      `json:"need_ai_generate"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// WorkItem is one entry of a project's "what I did" list. Icon is an asset
// reference and is never translated.
type WorkItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Draft carries the translatable fields for one language, either supplied
// by the author in a request body or produced by the pipeline.
type Draft struct {
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Content       string     `json:"content,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	WhatIDid      []WorkItem `json:"what_i_did,omitempty"`
	IsAIGenerated bool       `json:"is_ai_generated,omitempty"`
}

// HasTitle reports whether the draft is usable as a translation source or
// counts as an author-supplied translation. Only a non-empty title makes a
// draft "present".
func (d Draft) HasTitle() bool {
	return strings.TrimSpace(d.Title) != ""
}

// Translation is the persisted per-language record of a ContentItem.
type Translation struct {
	ItemID        string     `json:"item_id"`
	Language      Language   `json:"language"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Content       string     `json:"content,omitempty"`
	Summary       string     `json:"summary,omitempty"`
	WhatIDid      []WorkItem `json:"what_i_did,omitempty"`
	IsAIGenerated bool       `json:"is_ai_generated"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasTitle reports whether the stored translation counts as present, by the
// same non-empty-title rule that applies to drafts.
func (t Translation) HasTitle() bool {
	return strings.TrimSpace(t.Title) != ""
}

// Draft extracts the translatable fields of a stored Translation, e.g. for
// use as a translation source.
func (t Translation) Draft() Draft {
	return Draft{
		Title:         t.Title,
		Description:   t.Description,
		Content:       t.Content,
		Summary:       t.Summary,
		WhatIDid:      t.WhatIDid,
		IsAIGenerated: t.IsAIGenerated,
	}
}

// DiffersFrom compares the stored translatable fields against a proposed
// draft, field by field. The IsAIGenerated flag is deliberately excluded:
// an update that changes no text must not flip the flag.
func (t Translation) DiffersFrom(d Draft) bool {
	if t.Title != d.Title ||
		t.Description != d.Description ||
		t.Content != d.Content ||
		t.Summary != d.Summary {
		return true
	}
	return !slices.Equal(t.WhatIDid, d.WhatIDid)
}
