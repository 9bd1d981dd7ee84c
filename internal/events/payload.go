package events

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/watzon/hookd/internal/wire"
)

// ExtractArguments captures the fragment a hook receives from an event body:
// the call parameters for API events, the resource object for STATE events.
// Failures never propagate; they produce a degraded result.
func ExtractArguments(body []byte) Arguments {
	if len(body) == 0 {
		return degraded(ErrEmptyBody)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return degraded(fmt.Errorf("parsing event body: %w", err))
	}

	root := doc.Root()
	if root == nil {
		return degraded(ErrEmptyBody)
	}

	var (
		fragment *etree.Element
		host     string
	)

	switch hookType := strings.ToUpper(elementText(root, "HOOK_TYPE")); hookType {
	case "API":
		fragment = root.FindElement("./CALL_INFO/PARAMETERS")
		if fragment == nil {
			fragment = root.FindElement(".//PARAMETERS")
		}
	case "STATE":
		object := strings.ToUpper(elementText(root, "HOOK_OBJECT"))
		if object == "" {
			return degraded(fmt.Errorf("%w: missing HOOK_OBJECT", ErrNoFragment))
		}
		fragment = root.SelectElement(object)
		if fragment != nil && object == "HOST" {
			host = elementText(fragment, "NAME")
		}
	default:
		return degraded(fmt.Errorf("%w: unknown HOOK_TYPE %q", ErrNoFragment, hookType))
	}

	if fragment == nil {
		return degraded(ErrNoFragment)
	}

	out := etree.NewDocument()
	out.SetRoot(fragment.Copy())
	text, err := out.WriteToString()
	if err != nil {
		return degraded(fmt.Errorf("serializing fragment: %w", err))
	}

	return Arguments{
		Encoded: wire.EncodeString(text),
		Host:    host,
	}
}

func elementText(el *etree.Element, tag string) string {
	c := el.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}
