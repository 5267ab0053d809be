package store

import (
	"strconv"
	"strings"
)

// IndexOf returns n for ids of the form "<channel>.<n>" or "<channel>.<n>.<rest>".
func IndexOf(channel, id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, channel+".")
	if !ok {
		return 0, false
	}
	idx, _, _ := strings.Cut(rest, ".")
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsStale reports whether id belongs to channel with an index >= keep.
func IsStale(channel, id string, keep int) bool {
	n, ok := IndexOf(channel, id)
	return ok && n >= keep
}
