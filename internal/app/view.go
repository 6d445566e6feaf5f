package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
	"github.com/HaPhanBaoMinh/upmon/internal/ui/styles"
	"github.com/HaPhanBaoMinh/upmon/internal/ui/widgets"
)

// recentChecks is the sample size the detail page expresses uptime in.
const recentChecks = 100

func (m Model) View() string {
	head := m.renderHeader()

	var body string
	if id, ok := m.view.Detail(); ok {
		body = m.renderDetail(id)
	} else {
		body = lipgloss.NewStyle().Padding(0, 1).Render(m.table.View())
	}

	footer := m.renderFooter()

	main := lipgloss.JoinVertical(lipgloss.Left, head, body, footer)
	if m.form != nil {
		overlay := lipgloss.Place(m.width, m.height,
			lipgloss.Center, lipgloss.Center,
			m.form.view(),
		)
		return main + "\n" + overlay
	}
	return main
}

func (m Model) renderHeader() string {
	st := m.state

	up := 0
	for _, svc := range st.Services {
		if svc.Healthy {
			up++
		}
	}

	line := fmt.Sprintf("upmon │ %d services  %s  %s",
		len(st.Services),
		styles.Good.Render(fmt.Sprintf("%d up", up)),
		styles.Danger.Render(fmt.Sprintf("%d down", len(st.Services)-up)),
	)

	switch {
	case st.Loading:
		line += "  │ " + styles.Warn.Render("loading…")
	case !st.CheckedAt.IsZero():
		line += "  │ synced " + widgets.Ago(st.CheckedAt, m.now())
	}

	out := styles.Header.Render(line)
	if msg := st.ErrMessage(); msg != "" {
		out += "\n" + styles.Danger.Render("⚠ "+msg)
	}
	if st.Malformed != nil {
		out += "\n" + styles.Warn.Render("skipped records: "+st.Malformed.Error())
	}
	return out
}

func (m Model) renderFooter() string {
	var keys string
	if _, ok := m.view.Detail(); ok {
		keys = "[esc] back • [c] check • [d] delete • [r] refresh • [q] quit"
	} else {
		keys = "↑/↓ move • [enter] details • [a] add • [c] check • [C] check all • [d] delete • [r] refresh • [q] quit"
	}

	out := styles.Footer.Render(keys)
	if m.flash != "" {
		style := styles.Faint
		if m.flashErr {
			style = styles.Warn
		}
		out = style.Render(m.flash) + "\n" + out
	}
	return out
}

func (m Model) renderDetail(id string) string {
	svc, ok := m.state.Service(id)
	if !ok {
		return styles.Box.Render("Loading service " + id + "…")
	}

	width := m.width - 2
	if width < 40 {
		width = 40
	}

	return styles.Box.Width(width).Render(detailText(svc, m.now))
}

func detailText(svc *domain.Service, now func() time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n", styles.Title.Render(svc.Name), styles.Badge(svc.Healthy).Render(svc.Status()))
	fmt.Fprintf(&b, "%s\n", styles.Faint.Render(svc.URL))
	if len(svc.Tags) > 0 {
		tags := make([]string, len(svc.Tags))
		for i, t := range svc.Tags {
			tags[i] = styles.Tag.Render("#" + t)
		}
		fmt.Fprintf(&b, "%s\n", strings.Join(tags, " "))
	}
	b.WriteString("\n")

	if s, ok := svc.Latency.Stats(); ok {
		fmt.Fprintf(&b, "Latency   avg %.0fms  min %.0fms  max %.0fms  (last %d)\n", s.Avg, s.Min, s.Max, svc.Latency.Len())
	} else {
		b.WriteString("Latency   no samples yet\n")
	}

	successful := int(svc.UptimePercent / 100 * recentChecks)
	fmt.Fprintf(&b, "Uptime    %.2f%% %s\n", svc.UptimePercent, widgets.Bar(svc.UptimePercent/100, 20))
	fmt.Fprintf(&b, "Checks    %d successful of last %d\n", successful, recentChecks)
	fmt.Fprintf(&b, "Checked   %s\n", widgets.Ago(svc.LastChecked, now()))

	if values := svc.Latency.Values(); len(values) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "Trend     %s\n", widgets.LatencySpark(values, 40))
		last := make([]string, len(values))
		for i, v := range values {
			last[i] = fmt.Sprintf("%.0f", v)
		}
		fmt.Fprintf(&b, "%s", styles.Faint.Render("          "+strings.Join(last, " ")+" ms"))
	}

	return b.String()
}
