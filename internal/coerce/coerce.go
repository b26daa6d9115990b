// Package coerce turns free-text agent answers into typed values.
//
// Every function here is pure and deterministic: the same text always gives
// the same value or the same error. Nothing falls back to a zero value.
package coerce

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrUnparseable is matched by every coercion failure.
var ErrUnparseable = errors.New("unparseable answer")

// Kind names the target type of a coercion.
type Kind string

const (
	KindBool  Kind = "bool"
	KindInt   Kind = "int"
	KindFloat Kind = "float"
)

// Error describes why an answer could not be coerced.
type Error struct {
	Kind   Kind
	Text   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot coerce %q to %s: %s", clip(e.Text, 120), e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return ErrUnparseable
}

var trueWords = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "yup": true, "y": true,
	"true": true, "definitely": true, "certainly": true, "correct": true,
	"affirmative": true, "absolutely": true, "indeed": true, "sure": true,
}

var falseWords = map[string]bool{
	"no": true, "nope": true, "n": true, "not": true, "false": true,
	"never": true, "negative": true, "none": true, "nothing": true,
	"incorrect": true, "neither": true, "cannot": true, "cant": true,
	"dont": true, "doesnt": true, "isnt": true, "arent": true,
	"wont": true, "didnt": true, "hasnt": true, "havent": true,
}

// Bool classifies an answer as yes or no. The first decisive word wins, so
// "Not currently" is false and "Yes, there is no open order" is true.
// Text without any decisive word is an error.
func Bool(text string) (bool, error) {
	for _, w := range words(text) {
		if trueWords[w] {
			return true, nil
		}
		if falseWords[w] {
			return false, nil
		}
	}
	return false, &Error{Kind: KindBool, Text: text, Reason: "no yes/no answer found"}
}

func words(text string) []string {
	lower := strings.ToLower(text)
	lower = strings.NewReplacer("'", "", "’", "").Replace(lower)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var numberRe = regexp.MustCompile(`([-+])?\$?((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?|\.\d+)`)

// firstNumber returns the first number literal in text with separators and
// currency symbols removed.
func firstNumber(text string) (string, bool) {
	m := numberRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1] + strings.ReplaceAll(m[2], ",", ""), true
}

// Float extracts the first number in the answer.
func Float(text string) (float64, error) {
	lit, ok := firstNumber(text)
	if !ok {
		return 0, &Error{Kind: KindFloat, Text: text, Reason: "no number found"}
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, &Error{Kind: KindFloat, Text: text, Reason: err.Error()}
	}
	return v, nil
}

// Int extracts the first number in the answer and requires it to be whole.
// "75.00" is accepted, "75.32" is not.
func Int(text string) (int, error) {
	lit, ok := firstNumber(text)
	if !ok {
		return 0, &Error{Kind: KindInt, Text: text, Reason: "no number found"}
	}
	if !strings.Contains(lit, ".") {
		v, err := strconv.Atoi(lit)
		if err != nil {
			return 0, &Error{Kind: KindInt, Text: text, Reason: err.Error()}
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, &Error{Kind: KindInt, Text: text, Reason: err.Error()}
	}
	if f != math.Trunc(f) {
		return 0, &Error{Kind: KindInt, Text: text, Reason: fmt.Sprintf("%s is not a whole number", lit)}
	}
	if math.Abs(f) > 1<<53 {
		return 0, &Error{Kind: KindInt, Text: text, Reason: "out of range"}
	}
	return int(f), nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
