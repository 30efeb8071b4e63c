// Package idparse parses unsigned integers and separator-delimited ID
// lists out of textual input: CLI lists ("1,2,3") and process-status
// lines ("Gid:\t1000\t1000\t1000\t1000").
package idparse

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ParseUint32 parses s as a strict base-10 unsigned 32-bit integer.
// Partial, negative, empty, or overflowing input is rejected entirely.
func ParseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse uint32 %q: %w", s, err)
	}
	return uint32(v), nil
}

// ParseUint64 parses s as a strict base-10 unsigned 64-bit integer.
func ParseUint64(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse uint64 %q: %w", s, err)
	}
	return v, nil
}

// token is a single maximal run of non-separator runes.
type token struct {
	Value string `parser:"@Token"`
}

// tokenLine is a line fully decomposed into separator-delimited tokens.
type tokenLine struct {
	Tokens []*token `parser:"@@*"`
}

var parserCache sync.Map // separators string -> *participle.Parser[tokenLine]

func tokenizer(separators string) (*participle.Parser[tokenLine], error) {
	if p, ok := parserCache.Load(separators); ok {
		return p.(*participle.Parser[tokenLine]), nil
	}

	class := regexp.QuoteMeta(separators)
	lex := lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Sep", Pattern: "[" + class + "]+"},
		{Name: "Token", Pattern: "[^" + class + "]+"},
	})
	p, err := participle.Build[tokenLine](participle.Lexer(lex), participle.Elide("Sep"))
	if err != nil {
		return nil, fmt.Errorf("build tokenizer for separators %q: %w", separators, err)
	}
	parserCache.Store(separators, p)
	return p, nil
}

// SplitAndParseIDs tokenizes line on any rune in separators, discards
// the first skip tokens, then parses every remaining token as a
// uint32. Any malformed token fails the whole call; the returned slice
// is nil on error.
func SplitAndParseIDs(line string, separators string, skip int) ([]uint32, error) {
	p, err := tokenizer(separators)
	if err != nil {
		return nil, err
	}

	parsed, err := p.ParseString("", line)
	if err != nil {
		return nil, fmt.Errorf("tokenize %q: %w", line, err)
	}

	tokens := parsed.Tokens
	if skip > len(tokens) {
		return nil, fmt.Errorf("line %q has fewer than %d tokens to skip", line, skip)
	}
	tokens = tokens[skip:]

	ids := make([]uint32, 0, len(tokens))
	for _, t := range tokens {
		id, err := ParseUint32(t.Value)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", line, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
