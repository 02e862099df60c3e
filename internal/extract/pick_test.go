package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickText(t *testing.T) {
	html := `<html><body>
		<h2 class="empty">   </h2>
		<h2 class="blank"></h2>
		<h2 class="real">  Platform Engineer  </h2>
		<h2 class="later">Should not win</h2>
	</body></html>`
	page := snapshotPage(t, "https://careers.example.com", html)

	tests := []struct {
		name      string
		selectors []string
		expected  string
	}{
		{"skips empty matches", []string{".empty", ".blank", ".real", ".later"}, "Platform Engineer"},
		{"first with content wins", []string{".later", ".real"}, "Should not win"},
		{"missing selectors skipped", []string{".nope", ".real"}, "Platform Engineer"},
		{"nothing matches", []string{".nope", ".also-nope"}, ""},
		{"only empty matches", []string{".empty", ".blank"}, ""},
		{"no selectors", nil, ""},
		{"invalid selector skipped", []string{"[[", ".real"}, "Platform Engineer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PickText(context.Background(), page, tt.selectors)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPickText_OnlyFirstElementPerSelector(t *testing.T) {
	// The first match is empty, so the selector is skipped even though a
	// later element under the same selector has text.
	html := `<div class="company"></div><div class="company">Acme</div><span id="fallback">Fallback Co</span>`
	page := snapshotPage(t, "https://careers.example.com", html)

	got, err := PickText(context.Background(), page, []string{".company", "#fallback"})
	require.NoError(t, err)
	assert.Equal(t, "Fallback Co", got)
}

func TestPickText_HiddenTextIgnored(t *testing.T) {
	html := `<h1 class="t"><span style="display:none">Hidden</span></h1><h1 class="v">Visible</h1>`
	page := snapshotPage(t, "https://careers.example.com", html)

	got, err := PickText(context.Background(), page, []string{".t", ".v"})
	require.NoError(t, err)
	assert.Equal(t, "Visible", got)
}

func TestPickText_PageError(t *testing.T) {
	page := &brokenPage{failQuery: true}

	_, err := PickText(context.Background(), page, []string{"h1", "h2"})
	require.ErrorIs(t, err, errPageGone)
	assert.Equal(t, []string{"h1"}, page.queried)
}
