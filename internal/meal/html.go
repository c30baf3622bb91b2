package meal

import "embed"

//go:embed static/index.html static/panel.html
var templatesFS embed.FS

//go:embed static/app.css
var appCSS []byte

//go:embed static/app.js
var appJS []byte
