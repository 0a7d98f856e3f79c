package tokenizer

import "errors"

var errNilCounter = errors.New("nil tokenizer counter")

// CountResult captures the outcome of counting a text or byte slice.
type CountResult struct {
	Tokens  int
	Counted bool
}

// CountText estimates tokens for text using counter.
func CountText(counter Counter, text string) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errNilCounter
	}
	tokens, err := counter.CountString(text)
	if err != nil {
		return CountResult{}, err
	}
	return CountResult{Tokens: tokens, Counted: true}, nil
}
