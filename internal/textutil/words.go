package textutil

import "strings"

// WordCount counts whitespace-separated words. Used for the metadata record,
// which must report counts computed from final written topic content.
func WordCount(content string) int {
	return len(strings.Fields(content))
}
