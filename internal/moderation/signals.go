package moderation

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"
)

// minCapsCheckLength is the shortest message the caps check considers.
// Short messages in all caps ("OK!", "LOL") are not worth warning over.
const minCapsCheckLength = 10

// emojiPattern matches custom emoji tokens and Unicode emoji codepoints
// outside the basic multilingual plane.
var emojiPattern = regexp.MustCompile(`<a?:\w+:\d+>|[\x{10000}-\x{10FFFF}]`)

// CheckMassMentions flags messages whose combined user and role mention
// count exceeds the limit. The boundary is strict: exactly maxMentions is
// still clean.
func CheckMassMentions(msg Message, maxMentions int) *Detection {
	mentionCount := msg.MentionCount + msg.RoleMentionCount
	if mentionCount <= maxMentions {
		return nil
	}

	return &Detection{
		Category: CategoryMassMentions,
		Severity: SeverityWarn,
		Detail:   fmt.Sprintf("message contained %d mentions", mentionCount),
	}
}

// CheckEmojiDensity flags messages where emojis make up more than
// maxPercent of the content. Empty messages are skipped.
func CheckEmojiDensity(msg Message, maxPercent float64) *Detection {
	total := utf8.RuneCountInString(msg.Content)
	if total == 0 {
		return nil
	}

	emojiChars := 0
	for _, match := range emojiPattern.FindAllString(msg.Content, -1) {
		emojiChars += utf8.RuneCountInString(match)
	}

	percent := float64(emojiChars) / float64(total) * 100
	if percent <= maxPercent {
		return nil
	}

	return &Detection{
		Category: CategoryEmojiSpam,
		Severity: SeverityWarn,
		Detail:   fmt.Sprintf("message was %.1f%% emojis", percent),
	}
}

// CheckExcessiveCaps flags messages where uppercase letters make up more
// than maxPercent of all letters. Messages shorter than ten characters or
// without letters are skipped.
func CheckExcessiveCaps(msg Message, maxPercent float64) *Detection {
	if utf8.RuneCountInString(msg.Content) < minCapsCheckLength {
		return nil
	}

	upperCount := 0
	letterCount := 0
	for _, r := range msg.Content {
		if unicode.IsLetter(r) {
			letterCount++
			if unicode.IsUpper(r) {
				upperCount++
			}
		}
	}
	if letterCount == 0 {
		return nil
	}

	percent := float64(upperCount) / float64(letterCount) * 100
	if percent <= maxPercent {
		return nil
	}

	return &Detection{
		Category: CategoryCapsSpam,
		Severity: SeverityWarn,
		Detail:   fmt.Sprintf("message was %.1f%% capital letters", percent),
	}
}
