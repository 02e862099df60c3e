package extract

import (
	"context"
	"strings"
)

// PickText returns the trimmed visible text of the first selector whose first
// matching element has content. Elements that exist but are empty are skipped
// in favor of later selectors. Returns "" when no selector yields text.
func PickText(ctx context.Context, page Page, selectors []string) (string, error) {
	for _, sel := range selectors {
		text, found, err := page.QueryText(ctx, sel)
		if err != nil {
			return "", err
		}
		if !found {
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return trimmed, nil
		}
	}
	return "", nil
}
