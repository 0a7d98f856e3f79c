// Package jsonrepair decodes JSON produced by language models, which often
// arrives wrapped in markdown fences or truncated. Parse never fails: input
// that cannot be recovered is returned as a fallback carrying the original text.
package jsonrepair

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Kind tells whether a Result holds a decoded value.
type Kind int

const (
	// Parsed results carry the decoded JSON value.
	Parsed Kind = iota
	// Fallback results carry only the original text.
	Fallback
)

// Strategy names the step that produced a parsed value.
type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyFenced   Strategy = "fenced"
	StrategyRepaired Strategy = "repaired"
	StrategyNone     Strategy = "none"

	// FallbackPreamble precedes the original text when a fallback is shown to a user.
	FallbackPreamble = "The response couldn't be properly formatted. Original content below:\n\n"
)

// ErrNotParsed is returned by Decode on fallback results.
var ErrNotParsed = errors.New("response is not valid JSON")

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Result is the outcome of Parse.
type Result struct {
	Kind     Kind
	Strategy Strategy
	Value    any
	Original string
}

// Decode stores a parsed value into target through a JSON round trip.
func (result Result) Decode(target any) error {
	if result.Kind != Parsed {
		return ErrNotParsed
	}
	encoded, marshalError := json.Marshal(result.Value)
	if marshalError != nil {
		return marshalError
	}
	return json.Unmarshal(encoded, target)
}

// FallbackText returns the user-facing text of a fallback result.
func (result Result) FallbackText() string {
	return FallbackPreamble + result.Original
}

// Parse decodes text as JSON, then as the first fenced code block, then after
// repairing quotes and unbalanced brackets.
func Parse(text string) Result {
	if value, ok := decode(text); ok {
		return Result{Kind: Parsed, Strategy: StrategyDirect, Value: value, Original: text}
	}
	if match := fencedBlockPattern.FindStringSubmatch(text); len(match) == 2 && match[1] != "" {
		if value, ok := decode(match[1]); ok {
			return Result{Kind: Parsed, Strategy: StrategyFenced, Value: value, Original: text}
		}
	}
	if value, ok := decode(Repair(text)); ok {
		return Result{Kind: Parsed, Strategy: StrategyRepaired, Value: value, Original: text}
	}
	return Result{Kind: Fallback, Strategy: StrategyNone, Original: text}
}

func decode(text string) (any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}
	var value any
	if decodeError := json.Unmarshal([]byte(trimmed), &value); decodeError != nil {
		return nil, false
	}
	return value, true
}

// Repair escapes quotes that appear inside string values, closes an
// unterminated string and appends the closers of unbalanced objects and arrays.
func Repair(text string) string {
	runes := []rune(strings.TrimSpace(text))
	var repaired strings.Builder
	var closers []rune
	inString := false
	for index := 0; index < len(runes); index++ {
		character := runes[index]
		if inString {
			switch {
			case character == '\\' && index+1 < len(runes):
				repaired.WriteRune(character)
				index++
				repaired.WriteRune(runes[index])
				continue
			case character == '"' && !endsString(runes, index+1):
				repaired.WriteString(`\"`)
				continue
			case character == '"':
				inString = false
			case character == '\n':
				repaired.WriteString(`\n`)
				continue
			}
			repaired.WriteRune(character)
			continue
		}
		switch character {
		case '"':
			inString = true
		case '{':
			closers = append(closers, '}')
		case '[':
			closers = append(closers, ']')
		case '}', ']':
			if len(closers) > 0 && closers[len(closers)-1] == character {
				closers = closers[:len(closers)-1]
			}
		}
		repaired.WriteRune(character)
	}
	if inString {
		repaired.WriteRune('"')
	}
	for index := len(closers) - 1; index >= 0; index-- {
		repaired.WriteRune(closers[index])
	}
	return repaired.String()
}

// endsString reports whether a quote followed by runes[from:] closes a string:
// the next non-space rune must be structural or the input must end.
func endsString(runes []rune, from int) bool {
	for index := from; index < len(runes); index++ {
		if unicode.IsSpace(runes[index]) {
			continue
		}
		switch runes[index] {
		case ',', ':', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}
