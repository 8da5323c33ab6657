package illustration

import (
	"fmt"
	"strings"
	"unicode"

	"z-ebook-api/internal/workflow/node"
)

// Style 插图风格
type Style string

const (
	StyleChildren    Style = "children"
	StyleFantasy     Style = "fantasy"
	StyleAdventure   Style = "adventure"
	StyleEducational Style = "educational"
)

// Mood 插图氛围
type Mood string

const (
	MoodHappy       Mood = "happy"
	MoodMysterious  Mood = "mysterious"
	MoodAdventurous Mood = "adventurous"
	MoodPeaceful    Mood = "peaceful"
)

const previewRunes = 200

var styleHints = map[Style]string{
	StyleChildren:    "colorful, vibrant, child-friendly, simple shapes, warm colors, cute characters",
	StyleFantasy:     "magical, ethereal, mystical elements, glowing effects, fantasy creatures, enchanted setting",
	StyleAdventure:   "dynamic, action-oriented, dramatic lighting, exciting composition, adventurous spirit",
	StyleEducational: "clear, informative, educational, well-lit, detailed, learning-focused",
}

var moodHints = map[Mood]string{
	MoodHappy:       "bright, cheerful, positive energy, smiling characters, warm lighting",
	MoodMysterious:  "mysterious atmosphere, soft lighting, intriguing elements, subtle shadows",
	MoodAdventurous: "bold, energetic, dynamic composition, exciting colors, sense of movement",
	MoodPeaceful:    "calm, serene, gentle colors, peaceful atmosphere, tranquil setting",
}

var coverStyleHints = map[Style]string{
	StyleChildren:    "child-friendly, colorful, engaging for young readers",
	StyleFantasy:     "magical, mystical, fantasy elements",
	StyleAdventure:   "exciting, dynamic, adventurous",
	StyleEducational: "educational, clear, informative",
}

// ParseStyle 未知值回落为 children
func ParseStyle(s string) Style {
	st := Style(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := styleHints[st]; ok {
		return st
	}
	return StyleChildren
}

// ParseMood 未知值回落为 happy
func ParseMood(s string) Mood {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := moodHints[m]; ok {
		return m
	}
	return MoodHappy
}

// ChapterPrompt 构造章节插图提示词，正文取前 200 个字符并去掉标点
func ChapterPrompt(title, content string, style Style, mood Mood) string {
	preview := stripPunctuation(node.TruncateByRunes(content, previewRunes))
	return strings.Join([]string{
		fmt.Sprintf("Create a beautiful children's book illustration for the chapter %q.", title),
		fmt.Sprintf("The scene should be: %s, %s.", styleHints[ParseStyle(string(style))], moodHints[ParseMood(string(mood))]),
		fmt.Sprintf("Context from the chapter: %s...", preview),
		"Style: high-quality digital art, professional children's book illustration, detailed but not overwhelming, age-appropriate, engaging for young readers.",
		"Technical quality: sharp details, balanced composition, harmonious colors, professional lighting, clean lines.",
	}, "\n")
}

// CoverPrompt 构造封面提示词
func CoverPrompt(title, description string, style Style) string {
	lines := []string{fmt.Sprintf("Create a beautiful book cover illustration for %q.", title)}
	if d := strings.TrimSpace(description); d != "" {
		lines = append(lines, fmt.Sprintf("Book description: %s...", node.TruncateByRunes(d, previewRunes)))
	}
	lines = append(lines,
		fmt.Sprintf("Style: professional book cover design, %s.", coverStyleHints[ParseStyle(string(style))]),
		"Technical quality: high-resolution, attractive typography space, compelling visual composition, suitable for both print and digital formats.",
	)
	return strings.Join(lines, "\n")
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) || r == '_' {
			return r
		}
		return -1
	}, s)
}
