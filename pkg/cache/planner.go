package cache

// pageSpan describes one page touched by a request, plus the
// intra-page byte range that request occupies on that page.
type pageSpan struct {
	index     uint64 // page index within the file
	start     int64  // byte offset of the page's first byte, within the file
	loOff     int    // start of the intra-page slice, relative to the page
	hiOff     int    // end (exclusive) of the intra-page slice, relative to the page
}

// planPages decomposes (offset, length) into ordered, page-aligned
// segments, each carrying the exact intra-page slice bounds for the
// four cases (single page, first-of-many, middle, last-of-many).
// length must be > 0.
func planPages(offset int64, length int, pageSize int) []pageSpan {
	first := offset / int64(pageSize)
	last := (offset + int64(length) - 1) / int64(pageSize)

	spans := make([]pageSpan, 0, last-first+1)
	for i := first; i <= last; i++ {
		pageStart := i * int64(pageSize)
		var lo, hi int
		switch {
		case first == last: // single-page request
			lo = int(offset - pageStart)
			hi = lo + length
		case i == first: // first of many
			lo = int(offset - pageStart)
			hi = pageSize
		case i == last: // last of many
			lo = 0
			hi = int(offset + int64(length) - pageStart)
		default: // middle
			lo = 0
			hi = pageSize
		}
		spans = append(spans, pageSpan{index: uint64(i), start: pageStart, loOff: lo, hiOff: hi})
	}
	return spans
}
