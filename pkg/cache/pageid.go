package cache

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// PageID is the stable identifier for a single page of a backing file.
// It doubles as the staging-store filename and the Eviction Index key.
type PageID string

// digestSize is the width of the path digest in bytes (128 bits).
const digestSize = 16

// pageIDDelim separates the hex digest from the decimal page index.
// It must never appear in the hex alphabet, which it doesn't for any
// base-16 encoding.
const pageIDDelim = "_"

// newPageID derives the PageID for (path, index): hex(digest(path)) + "_" + dec(index).
func newPageID(path string, index uint64) PageID {
	h, err := blake2b.New(digestSize, nil)
	if err != nil {
		// blake2b.New only errors on an invalid size or key length; digestSize
		// is a compile-time constant within range, so this is unreachable.
		panic(fmt.Sprintf("cache: blake2b init: %v", err))
	}
	h.Write([]byte(path))
	digest := h.Sum(nil)
	return PageID(hex.EncodeToString(digest) + pageIDDelim + strconv.FormatUint(index, 10))
}

// splitPageID recovers the page index encoded in a PageID, as the
// writeback path must: split on the last delimiter and parse the suffix.
func splitPageID(id PageID) (index uint64, ok bool) {
	s := string(id)
	i := strings.LastIndex(s, pageIDDelim)
	if i < 0 || i == len(s)-1 {
		return 0, false
	}
	n, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
