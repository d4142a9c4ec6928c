package interpreter

import "strings"

// collectBlock gathers the body of the block opened at lines[start]. Lines are
// returned untrimmed. The first line whose trimmed text equals terminator ends
// the body, whatever came before it, so blocks never nest. next is the index
// just past the terminator, or len(lines) when the source ran out first.
func collectBlock(lines []string, start int, terminator string) (body []string, next int) {
	i := start + 1
	for i < len(lines) && strings.TrimSpace(lines[i]) != terminator {
		body = append(body, lines[i])
		i++
	}
	if i < len(lines) {
		i++
	}
	return body, i
}
