package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 20
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizePage clamps the page number to 1-based indexing.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Offset returns the row offset for the normalized page/limit pair.
func (p Params) Offset() int {
	return (NormalizePage(p.Page) - 1) * NormalizeLimit(p.Limit)
}

// TotalPages returns how many pages the total row count spans.
func TotalPages(total int64, limit int) int {
	normalized := int64(NormalizeLimit(limit))
	pages := total / normalized
	if total%normalized != 0 {
		pages++
	}
	if pages < 1 {
		pages = 1
	}
	return int(pages)
}
