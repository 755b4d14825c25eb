// Package navigation builds the menu and page title shown by the base layout.
package navigation

// Page identifiers.
const (
	PageLogin  = "login"
	PageHome   = "home"
	PageLogout = "logout"
)

// Item is a single menu link.
type Item struct {
	Title  string
	URL    string
	Active bool
}

// Context is the navigation state of a rendered page.
type Context struct {
	PageTitle  string
	ActivePage string
	Username   string
	Menu       []Item
}

// NewContext creates the navigation for page. The menu depends on whether a
// user is logged in, an empty username means anonymous.
func NewContext(pageTitle, activePage, username string) *Context {
	c := &Context{
		PageTitle:  pageTitle,
		ActivePage: activePage,
		Username:   username,
	}

	if username == "" {
		c.add("Login", "/login", PageLogin)

		return c
	}

	c.add("Profile", "/", PageHome)
	c.add("Logout", "/logout", PageLogout)

	return c
}

func (c *Context) add(title, url, page string) {
	c.Menu = append(c.Menu, Item{Title: title, URL: url, Active: c.ActivePage == page})
}

// IsActive reports whether page is the current page.
func (c *Context) IsActive(page string) bool {
	return c.ActivePage == page
}

// LoggedIn reports whether the page is rendered for a logged in user.
func (c *Context) LoggedIn() bool {
	return c.Username != ""
}
