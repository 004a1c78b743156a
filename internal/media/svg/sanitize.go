// Package svg strips active content from user supplied SVG avatars.
package svg

import (
	"bytes"
	"errors"
	"regexp"
)

var ErrNotSVG = errors.New("not an svg document")

var (
	scriptBlock   = regexp.MustCompile(`(?is)<\s*script\b.*?<\s*/\s*script\s*>`)
	scriptSelf    = regexp.MustCompile(`(?is)<\s*script\b[^>]*/\s*>`)
	foreignObject = regexp.MustCompile(`(?is)<\s*foreignObject\b.*?<\s*/\s*foreignObject\s*>`)
	eventAttr     = regexp.MustCompile(`(?is)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	jsHref        = regexp.MustCompile(`(?is)\s+(xlink:)?href\s*=\s*("\s*javascript:[^"]*"|'\s*javascript:[^']*')`)

	// animation elements can rewrite href to a script URL after load
	animationSelf  = regexp.MustCompile(`(?is)<\s*(animate[a-z]*|set)\b[^>]*/\s*>`)
	animationBlock = regexp.MustCompile(`(?is)<\s*(animate[a-z]*|set)\b.*?<\s*/\s*(animate[a-z]*|set)\s*>`)
	jsValue        = regexp.MustCompile(`(?is)\s+[a-z:_-]+\s*=\s*("[^"]*` + scriptScheme + `[^"]*"|'[^']*` + scriptScheme + `[^']*')`)
)

const scriptScheme = `javascript\s*(:|&#0*58;?|&#x0*3a;?|&colon;)`

func Sanitize(input []byte) ([]byte, error) {
	if !bytes.Contains(bytes.ToLower(input), []byte("<svg")) {
		return nil, ErrNotSVG
	}

	clean := scriptBlock.ReplaceAll(input, nil)
	clean = scriptSelf.ReplaceAll(clean, nil)
	clean = foreignObject.ReplaceAll(clean, nil)
	clean = eventAttr.ReplaceAll(clean, nil)
	clean = jsHref.ReplaceAll(clean, nil)
	clean = animationSelf.ReplaceAll(clean, nil)
	clean = animationBlock.ReplaceAll(clean, nil)
	clean = jsValue.ReplaceAll(clean, nil)

	return clean, nil
}
