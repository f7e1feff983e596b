package middleware

import "strings"

// skipList holds request paths a middleware passes straight through, such as
// the health and metrics endpoints. A trailing "*" makes a prefix pattern.
type skipList struct {
	exact    map[string]struct{}
	prefixes []string
}

func newSkipList(patterns []string) skipList {
	list := skipList{exact: make(map[string]struct{}, len(patterns))}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		switch {
		case pattern == "":
		case strings.HasSuffix(pattern, "*"):
			list.prefixes = append(list.prefixes, strings.TrimSuffix(pattern, "*"))
		default:
			list.exact[pattern] = struct{}{}
		}
	}
	return list
}

func (s skipList) matches(path string) bool {
	if _, ok := s.exact[path]; ok {
		return true
	}
	for _, prefix := range s.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
