package repository

import (
	"fmt"
	"regexp"

	"github.com/gosimple/slug"
)

// slugify turns a store name into its base URL slug.
func slugify(name string) string {
	return slug.Make(name)
}

// slugPattern matches the base slug and any numeric-suffixed variant of it,
// so `cafe-blue` matches `cafe-blue`, `cafe-blue-2`, `cafe-blue-17`.
func slugPattern(base string) string {
	return "^" + regexp.QuoteMeta(base) + "(-[0-9]+)?$"
}

// candidateSlug picks the slug to try given how many stores already use the
// base or a suffixed variant: the base itself when unused, `base-{n+1}` otherwise.
func candidateSlug(base string, existing int64) string {
	if existing == 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, existing+1)
}
