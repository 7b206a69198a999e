package preview

import "strings"

// ExportFilename is the download name of an exported project.
const ExportFilename = "project.html"

// Export renders a standalone page from the sources, without console
// instrumentation or error guarding.
func Export(src Sources) []byte {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>My Project</title>
  <style>
`)
	b.WriteString(src.Style)
	b.WriteString("\n  </style>\n</head>\n<body>\n")
	b.WriteString(src.Markup)
	b.WriteString("\n  <script>\n")
	b.WriteString(src.Script)
	b.WriteString("\n  </script>\n</body>\n</html>")
	return []byte(b.String())
}
