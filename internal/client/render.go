// Package client renders received trios as colored terminal lines.
package client

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/Tyrowin/framechat/internal/protocol"
)

// palette is red, green, yellow, blue, magenta, cyan.
var palette = []lipgloss.Color{"1", "2", "3", "4", "5", "6"}

// colorFor picks the palette entry for a client id.
func colorFor(id int) lipgloss.Color {
	i := id % len(palette)
	if i < 0 {
		i += len(palette)
	}
	return palette[i]
}

// printer serializes output from the two client workers. Styles are bound to
// out so color is dropped when out is not a terminal.
type printer struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *lipgloss.Renderer
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:      out,
		renderer: lipgloss.NewRenderer(out),
	}
}

func (p *printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, s)
}

// render writes one trio: chat as "name: body", notices as the body, and
// replies line by line.
func (p *printer) render(env protocol.Envelope) {
	style := p.renderer.NewStyle().Foreground(colorFor(env.ID))

	switch env.Kind {
	case protocol.KindChat:
		p.println(style.Render(env.Sender + ": " + env.Body))
	case protocol.KindNotice:
		p.println(style.Render(env.Body))
	default:
		for _, line := range strings.Split(strings.TrimRight(env.Body, "\n"), "\n") {
			p.println(style.Render(line))
		}
	}
}
