package ui

// RenderPlanePanel wraps the plane view with a styled border.
func RenderPlanePanel(width, height int, planeContent, legend string) string {
	content := planeContent + "\n" + legend
	rendered := StylePanelBorder.Width(width - 2).Height(height - 2).Render(content)
	return clampLines(rendered, height)
}
