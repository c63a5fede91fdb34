package usecase

import (
	"testing"

	"DeepInfo/internal/domain/models"
)

func TestNavigate(t *testing.T) {
	tests := []struct {
		name     string
		pathname string
		search   string
		active   models.View
		mounted  models.View
		hrefQS   string
	}{
		{"chart", "/USD/BTC/chart", "", models.ViewChart, models.ViewChart, ""},
		{"markets keeps query", "/USD/BTC/markets", "?foo=1", models.ViewMarkets, models.ViewMarkets, "?foo=1"},
		{"case insensitive", "/usd/btc/INFO", "bar=2", models.ViewInfo, models.ViewInfo, "?bar=2"},
		{"nested route", "/USD/BTC/chart/extra", "", "", models.ViewChart, ""},
		{"no view", "/USD/BTC", "", "", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			nav := Navigate("USD", "BTC", tc.pathname, tc.search)
			if len(nav.Tabs) != 3 {
				t.Fatalf("tabs = %d, want 3", len(nav.Tabs))
			}
			if nav.Mounted != tc.mounted {
				t.Fatalf("mounted = %q, want %q", nav.Mounted, tc.mounted)
			}
			for _, tab := range nav.Tabs {
				if want := "/USD/BTC/" + string(tab.View) + tc.hrefQS; tab.Href != want {
					t.Fatalf("href = %q, want %q", tab.Href, want)
				}
				if tab.Active != (tab.View == tc.active) {
					t.Fatalf("%s active = %v", tab.View, tab.Active)
				}
			}
		})
	}
}

func TestNavigateTabOrder(t *testing.T) {
	nav := Navigate("USD", "BTC", "/USD/BTC/chart", "")
	labels := []string{"Chart", "Info", "Markets"}
	for i, tab := range nav.Tabs {
		if tab.Label != labels[i] {
			t.Fatalf("tab %d = %q, want %q", i, tab.Label, labels[i])
		}
	}
}
