package usecase

import (
	"strings"

	"DeepInfo/internal/domain/models"
)

var tabOrder = []struct {
	label string
	view  models.View
}{
	{"Chart", models.ViewChart},
	{"Info", models.ViewInfo},
	{"Markets", models.ViewMarkets},
}

// Navigate builds the tab bar for a pair page. A tab is active when the lower-cased
// path ends with its view name; the mounted view is the one whose route prefixes the path.
// Links keep the current query string.
func Navigate(quote, base, pathname, search string) models.Navigation {
	head := "/" + quote + "/" + base
	path := strings.ToLower(pathname)
	if search != "" && !strings.HasPrefix(search, "?") {
		search = "?" + search
	}

	nav := models.Navigation{Tabs: make([]models.Tab, 0, len(tabOrder))}
	for _, t := range tabOrder {
		nav.Tabs = append(nav.Tabs, models.Tab{
			Label:  t.label,
			View:   t.view,
			Href:   head + "/" + string(t.view) + search,
			Active: strings.HasSuffix(path, string(t.view)),
		})
		route := strings.ToLower(head + "/" + string(t.view))
		if nav.Mounted == "" && (path == route || strings.HasPrefix(path, route+"/")) {
			nav.Mounted = t.view
		}
	}
	return nav
}
