package dispatch

import (
	"fmt"
	"time"
)

// ManifestItemID generates the id of the n-th item created with the manifest.
// The format is <branchSlug>-<n>, 1-based.
func ManifestItemID(branchSlug string, n int) string {
	return fmt.Sprintf("%s-%d", branchSlug, n)
}

// LateItemID generates the id of an item added after creation.
// The format is <branchSlug>-<unixMillis>-<suffix>; uniqueness comes from the
// timestamp plus random suffix rather than a shared counter.
func LateItemID(branchSlug string, now time.Time, suffix string) string {
	return fmt.Sprintf("%s-%d-%s", branchSlug, now.UnixMilli(), suffix)
}
