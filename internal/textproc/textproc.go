// Package textproc normalizes assistant replies for the two answer variants:
// a markdown-stripped plain form safe for TTS playback, and the raw markdown.
package textproc

import (
	"regexp"
	"strings"
)

var (
	fencedCodeRe  = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9]*\\n)?(.*?)```")
	inlineCodeRe  = regexp.MustCompile("`([^`]+)`")
	boldStarRe    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicStarRe  = regexp.MustCompile(`\*([^*]+)\*`)
	boldUnderRe   = regexp.MustCompile(`__([^_]+)__`)
	italicUnderRe = regexp.MustCompile(`_([^_]+)_`)
	headerRe      = regexp.MustCompile(`(?m)^#+\s+`)
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	bulletRe      = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedRe    = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	blockquoteRe  = regexp.MustCompile(`(?m)^>\s+`)
	horizRuleRe   = regexp.MustCompile(`(?m)^\s*[-*_]{3,}\s*$`)
	// Greedy so a run of any length collapses in a single pass, keeping
	// StripMarkdown idempotent.
	blankRunRe = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)

	disallowedRe = regexp.MustCompile(`[^A-Za-z0-9 ,.]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// StripMarkdown removes markdown formatting from text while preserving the
// readable content: code markers are unwrapped, emphasis and headers are
// stripped, links are reduced to their text, list/blockquote/rule markers are
// removed and blank-line runs are collapsed.
func StripMarkdown(text string) string {
	if text == "" {
		return ""
	}

	text = fencedCodeRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")

	text = boldStarRe.ReplaceAllString(text, "$1")
	text = italicStarRe.ReplaceAllString(text, "$1")
	text = boldUnderRe.ReplaceAllString(text, "$1")
	text = italicUnderRe.ReplaceAllString(text, "$1")

	text = headerRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	text = horizRuleRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "")
	text = numberedRe.ReplaceAllString(text, "")
	text = blockquoteRe.ReplaceAllString(text, "")

	text = blankRunRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

// CleanPlainText narrows text to the character set the avatar's speech
// pipeline accepts: letters, digits, spaces, commas and periods. Everything
// else becomes a space and whitespace runs are collapsed.
func CleanPlainText(text string) string {
	if text == "" {
		return ""
	}
	text = disallowedRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
