package tts

import (
	"regexp"
	"strings"
)

func normalizeTextForTTS(text string) string {
	text = removeMarkdown(text)
	text = removeEmojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

var markdownReplacer = strings.NewReplacer(
	"**", "", // bold
	"__", "", // underline
	"~~", "", // strikethrough
	"`", "", // inline code
	"*", "", // italic or bullet
)

func removeMarkdown(text string) string {
	text = markdownHeadingRegex.ReplaceAllString(text, "")
	text = markdownLinkRegex.ReplaceAllString(text, "$1")
	return markdownReplacer.Replace(text)
}

var (
	// Marks (\p{M}) carry the vowel signs of Indic scripts and must survive.
	removeEmojiRegex     = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{P}\p{Z}\p{Sc}\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
	markdownHeadingRegex = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	markdownLinkRegex    = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
)
