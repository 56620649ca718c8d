// Copyright 2017 CoreOS, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package harness

// Match reports whether text matches the wildmat expression pattern,
// the dialect --run-subtest accepts. An expression is a comma-separated
// list of shell-style patterns ("*", "?", "[a-z]", "[^a-z]", "\" to
// escape), each optionally prefixed with "!" to negate it. Patterns are
// tried left to right and the last one that matches decides; an
// expression no pattern of which matches yields false.
//
// So "basic-*,!*-cursor" selects every subtest starting with "basic-"
// except those ending in "-cursor".
func Match(text, pattern string) bool {
	result := false
	for _, part := range splitParts(pattern) {
		negate := len(part) > 0 && part[0] == '!'
		if negate {
			part = part[1:]
		}
		if matchPart(text, part) {
			result = !negate
		}
	}
	return result
}

// splitParts splits an expression on commas that are neither escaped
// nor inside a bracket class.
func splitParts(pattern string) []string {
	var parts []string
	start := 0
	inBracket := false
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++
		case '[':
			inBracket = true
		case ']':
			inBracket = false
		case ',':
			if !inBracket {
				parts = append(parts, pattern[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, pattern[start:])
}

func matchPart(text, pat string) bool {
	t, p := 0, 0
	for p < len(pat) {
		if pat[p] == '*' {
			for p < len(pat) && pat[p] == '*' {
				p++
			}
			if p == len(pat) {
				return true
			}
			for i := t; i <= len(text); i++ {
				if matchPart(text[i:], pat[p:]) {
					return true
				}
			}
			return false
		}
		if t >= len(text) {
			return false
		}
		switch pat[p] {
		case '?':
			t++
			p++
		case '\\':
			p++
			if p >= len(pat) || pat[p] != text[t] {
				return false
			}
			t++
			p++
		case '[':
			ok, next := matchClass(text[t], pat, p)
			if !ok {
				return false
			}
			t++
			p = next
		default:
			if pat[p] != text[t] {
				return false
			}
			t++
			p++
		}
	}
	return t == len(text)
}

// matchClass matches b against the bracket class starting at pat[p],
// which is '['. It returns whether b is in the class and the offset
// just past the closing ']'. A ']' directly after the opening bracket
// (or the negation) is a literal member. An unterminated class matches
// a literal '['.
func matchClass(b byte, pat string, p int) (bool, int) {
	start := p
	p++
	negate := false
	if p < len(pat) && (pat[p] == '^' || pat[p] == '!') {
		negate = true
		p++
	}
	matched := false
	first := true
	for p < len(pat) {
		c := pat[p]
		if c == ']' && !first {
			return matched != negate, p + 1
		}
		first = false
		if c == '\\' && p+1 < len(pat) {
			p++
			c = pat[p]
		}
		if p+2 < len(pat) && pat[p+1] == '-' && pat[p+2] != ']' {
			if b >= c && b <= pat[p+2] {
				matched = true
			}
			p += 3
		} else {
			if b == c {
				matched = true
			}
			p++
		}
	}
	return b == '[', start + 1
}
