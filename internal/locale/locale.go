// Package locale holds the per-language string tables for the USSD menus.
// All language-dependent text lives in locales.json; adding a language is a
// data change only, the state machine never needs to know.
package locale

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed locales.json
var localesJSON []byte

const DefaultLanguage = "EN"

type entry struct {
	Welcome   string            `json:"welcome"`
	Prompts   map[string]string `json:"prompts"`
	Topics    []string          `json:"topics"`
	Offensive []string          `json:"offensive"`
}

type Table struct {
	languageMenu string
	menu         map[string]string // menu digit -> language code
	languages    map[string]entry
}

// Load parses the embedded string tables. Called once at startup.
func Load() (*Table, error) {
	var raw struct {
		LanguageMenu string            `json:"languageMenu"`
		Menu         map[string]string `json:"menu"`
		Languages    map[string]entry  `json:"languages"`
	}
	if err := json.Unmarshal(localesJSON, &raw); err != nil {
		return nil, fmt.Errorf("parse locales: %w", err)
	}

	if _, ok := raw.Languages[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("locales missing default language %q", DefaultLanguage)
	}
	for digit, code := range raw.Menu {
		if _, ok := raw.Languages[code]; !ok {
			return nil, fmt.Errorf("menu entry %q points at unknown language %q", digit, code)
		}
	}

	return &Table{
		languageMenu: raw.LanguageMenu,
		menu:         raw.Menu,
		languages:    raw.Languages,
	}, nil
}

// Languages returns all configured language codes.
func (t *Table) Languages() []string {
	codes := make([]string, 0, len(t.languages))
	for code := range t.languages {
		codes = append(codes, code)
	}
	return codes
}

// LanguageMenu is the (English) menu shown when asking for a language.
func (t *Table) LanguageMenu() string { return t.languageMenu }

// LanguageFor maps a menu digit to a language code.
func (t *Table) LanguageFor(choice string) (string, bool) {
	code, ok := t.menu[choice]
	return code, ok
}

// Known reports whether lang is a configured language code.
func (t *Table) Known(lang string) bool {
	_, ok := t.languages[lang]
	return ok
}

func (t *Table) entryFor(lang string) entry {
	if e, ok := t.languages[lang]; ok {
		return e
	}
	return t.languages[DefaultLanguage]
}

func (t *Table) Welcome(lang string) string { return t.entryFor(lang).Welcome }

// Prompt returns the prompt string for the given key, falling back to the
// default language's string when the key is missing in lang.
func (t *Table) Prompt(lang, key string) string {
	if s, ok := t.entryFor(lang).Prompts[key]; ok {
		return s
	}
	return t.languages[DefaultLanguage].Prompts[key]
}

func (t *Table) Topics(lang string) []string { return t.entryFor(lang).Topics }

// FormatTopics renders the numbered topic menu for lang.
func (t *Table) FormatTopics(lang string) string {
	topics := t.Topics(lang)
	lines := make([]string, len(topics))
	for i, topic := range topics {
		lines[i] = fmt.Sprintf("%d. %s", i+1, topic)
	}
	return strings.Join(lines, "\n")
}

// Offensive returns the denylist for lang. Unlike prompts this does not fall
// back: a language without a denylist simply has no lexical gate.
func (t *Table) Offensive(lang string) []string {
	if e, ok := t.languages[lang]; ok {
		return e.Offensive
	}
	return nil
}
