package service

import "html"

func templateEscape(s string) string {
	return html.EscapeString(s)
}
