package handler

const (
	// BaseLayout is the default path for layout templates.
	BaseLayout = "layouts/base"

	// RootPath is the root path the route group.
	RootPath = "/"

	// LoginPath is the login page, failed callbacks land here.
	LoginPath = "/login"

	// TemplateError renders the generic error page.
	TemplateError = "error"

	// ErrNilDepsFatalLogMsg is used if app or one of the dependencies is nil.
	ErrNilDepsFatalLogMsg = "app or handler dependencies are nil"
)
