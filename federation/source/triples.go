package source

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/wbrown/janus-federation/federation"
)

// ReadTriples reads one triple per line in the term encoding of
// federation.Term.String, optionally terminated by " .". Blank lines and
// lines starting with '#' are skipped.
func ReadTriples(r io.Reader) ([]federation.Triple, error) {
	var out []federation.Triple
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		t, err := ParseTriple(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseTriple parses "s p o" or "s p o ."
func ParseTriple(text string) (federation.Triple, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimSpace(strings.TrimSuffix(text, " ."))

	var terms []federation.Term
	for text != "" {
		tok, rest, err := nextToken(text)
		if err != nil {
			return federation.Triple{}, err
		}
		term, err := federation.ParseTerm(tok)
		if err != nil {
			return federation.Triple{}, err
		}
		terms = append(terms, term)
		text = strings.TrimLeftFunc(rest, unicode.IsSpace)
	}
	if len(terms) != 3 {
		return federation.Triple{}, fmt.Errorf("expected 3 terms, got %d", len(terms))
	}
	return federation.NewTriple(terms[0], terms[1], terms[2]), nil
}

// nextToken splits off one term. Quoted literals may contain spaces and
// carry a language or datatype suffix.
func nextToken(text string) (tok, rest string, err error) {
	if text[0] == '"' {
		quoted, err := strconv.QuotedPrefix(text)
		if err != nil {
			return "", "", fmt.Errorf("bad literal %q: %w", text, err)
		}
		end := len(quoted)
		for end < len(text) && !unicode.IsSpace(rune(text[end])) {
			end++
		}
		return text[:end], text[end:], nil
	}
	end := strings.IndexFunc(text, unicode.IsSpace)
	if end < 0 {
		return text, "", nil
	}
	return text[:end], text[end:], nil
}
