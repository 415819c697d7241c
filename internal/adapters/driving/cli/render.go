package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

// renderer prints crawl results for humans.
type renderer struct {
	folder lipgloss.Style
	share  lipgloss.Style
	group  lipgloss.Style
	muted  lipgloss.Style
	line   lipgloss.Style
}

func newRenderer(w io.Writer) *renderer {
	line := lipgloss.NewStyle()
	if width := terminalWidth(w); width > 0 {
		line = line.MaxWidth(width)
	}
	return &renderer{
		folder: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		share:  lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
		group:  lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")),
		line:   line,
	}
}

// terminalWidth returns the width of w when it is a terminal, else 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// Collection renders contacts then groups.
func (r *renderer) Collection(c domain.Collection) string {
	var b strings.Builder
	r.writeEntities(&b, "", c.Contacts, c.Groups)
	if c.IsEmpty() {
		b.WriteString(r.muted.Render("No contacts found.") + "\n")
	}
	return b.String()
}

// Tree renders the visible folders of a tree with their content.
func (r *renderer) Tree(root *domain.TreeNode) string {
	var b strings.Builder
	nodes := root.Visible()
	for _, n := range nodes {
		r.writeNode(&b, n, 0)
	}
	if len(nodes) == 0 {
		b.WriteString(r.muted.Render("No folders found.") + "\n")
	}
	return b.String()
}

func (r *renderer) writeNode(b *strings.Builder, n *domain.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	title := r.folder.Render(n.Name)
	if n.IsShare {
		title += " " + r.share.Render("[shared]")
	}
	r.writeLine(b, indent+title)
	r.writeEntities(b, indent+"  ", n.Contacts, n.Groups)
	for _, sub := range n.Subfolders {
		r.writeNode(b, sub, depth+1)
	}
}

func (r *renderer) writeEntities(b *strings.Builder, indent string, contacts []domain.Contact, groups []domain.Group) {
	for i := range contacts {
		r.writeLine(b, indent+"- "+contactLine(contacts[i]))
	}
	for i := range groups {
		g := groups[i]
		line := fmt.Sprintf("%s (%d members)", g.Name, len(g.Members))
		if n := len(g.FailedDereferences); n > 0 {
			line += r.muted.Render(fmt.Sprintf(", %d unresolved", n))
		}
		r.writeLine(b, indent+"* "+r.group.Render(line))
		for j := range g.Members {
			r.writeLine(b, indent+"    "+contactLine(g.Members[j]))
		}
	}
}

func (r *renderer) writeLine(b *strings.Builder, s string) {
	b.WriteString(r.line.Render(s))
	b.WriteString("\n")
}

func contactLine(c domain.Contact) string {
	if c.Name == "" {
		return "<" + c.Email + ">"
	}
	return c.Name + " <" + c.Email + ">"
}
