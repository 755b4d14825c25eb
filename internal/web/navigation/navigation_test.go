package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewContext(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		username string
		menu     []Item
	}{
		{
			name: "anonymous",
			page: PageLogin,
			menu: []Item{{Title: "Login", URL: "/login", Active: true}},
		},
		{
			name:     "logged in",
			page:     PageHome,
			username: "a@b.com",
			menu: []Item{
				{Title: "Profile", URL: "/", Active: true},
				{Title: "Logout", URL: "/logout"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewContext("Title", tt.page, tt.username)

			assert.Equal(t, "Title", ctx.PageTitle)
			assert.Equal(t, tt.menu, ctx.Menu)
			assert.True(t, ctx.IsActive(tt.page))
			assert.False(t, ctx.IsActive("other"))
			assert.Equal(t, tt.username != "", ctx.LoggedIn())
		})
	}
}
