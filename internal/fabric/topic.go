package fabric

import "strings"

// MatchTopic reports whether topic matches pattern under MQTt-style
// wildcards: '+' matches exactly one dotted segment, '#' matches any number
// of remaining segments and is only valid as the final segment.
func MatchTopic(pattern, topic string) bool {
	pSegs := strings.Split(pattern, ".")
	tSegs := strings.Split(topic, ".")

	for i, p := range pSegs {
		if p == "#" {
			return true // matches this and all remaining segments
		}
		if i >= len(tSegs) {
			return false
		}
		if p == "+" {
			continue
		}
		if p != tSegs[i] {
			return false
		}
	}
	return len(pSegs) == len(tSegs)
}

// specificity scores a pattern for longest-prefix-match policy lookup: a
// literal segment outranks '+', which outranks '#', and more segments
// outrank fewer.
func specificity(pattern string) int {
	segs := strings.Split(pattern, ".")
	score := len(segs) * 10
	for _, s := range segs {
		switch s {
		case "#":
			score -= 5
		case "+":
			score -= 2
		}
	}
	return score
}
