// Package report renders reconcile and offset reports for the terminal.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/medpipe/pump-history-cli/internal/application"
	"github.com/medpipe/pump-history-cli/internal/domain"
)

type RenderOptions struct {
	Verbose bool
}

func renderSessionView(rep application.SessionReport, opts RenderOptions, s styles) string {
	session := rep.Session

	title := s.title.Render("Reconciled Session")
	if !rep.Written {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", s.warning.Render("[not written]"))
	}

	lines := []string{
		title,
		s.header.Render(fmt.Sprintf("session: %s", session.SessionID)),
		detailLine("device", deviceLabel(session), s),
	}

	if session.Zone != "" {
		lines = append(lines, detailLine("timezone", session.Zone, s))
	}
	lines = append(lines, detailLine("settings", string(rep.SettingsOrigin), s))

	lines = append(lines, s.section.Render(renderEventBreakdown(session, s)))

	if warnings := statsLines(session.Stats, s); len(warnings) > 0 {
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, warnings...)))
	}

	if opts.Verbose && len(session.Events) > 0 {
		lines = append(lines, s.section.Render(renderEventList(session.Events, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func detailLine(label, value string, s styles) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, s.label.Render(label+":"), " ", s.value.Render(value))
}

func deviceLabel(session domain.ReconciledSession) string {
	if session.DeviceID == "" {
		return session.Family
	}

	return fmt.Sprintf("%s (%s)", session.DeviceID, session.Family)
}

func renderEventBreakdown(session domain.ReconciledSession, s styles) string {
	lines := []string{
		s.value.Render(fmt.Sprintf("events: %d (from %d records)", session.Stats.Events, session.Stats.Records)),
	}

	counts := make(map[domain.Family]int, 4)
	for _, ev := range session.Events {
		counts[ev.Family]++
	}
	if len(counts) == 0 {
		lines = append(lines, s.empty.Render("No events in this session."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	families := make([]domain.Family, 0, len(counts))
	for family := range counts {
		families = append(families, family)
	}
	sort.Slice(families, func(i, j int) bool {
		if counts[families[i]] != counts[families[j]] {
			return counts[families[i]] > counts[families[j]]
		}
		return families[i] < families[j]
	})

	width := 0
	for _, family := range families {
		if len(family) > width {
			width = len(family)
		}
	}

	for _, family := range families {
		label := s.label.Render(fmt.Sprintf("%-*s", width, string(family)))
		bar := renderCountBar(counts[family], len(session.Events), 24, s)
		count := s.value.Render(fmt.Sprintf("%d", counts[family]))
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, label, " ", bar, " ", count))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderCountBar(count, total, width int, s styles) string {
	if width <= 0 || total <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * float64(count) / float64(total)))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	fillSegment := s.barFill.Render(strings.Repeat("=", filled))
	emptySegment := s.barEmpty.Render(strings.Repeat("-", width-filled))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fillSegment,
		emptySegment,
		s.barBracket.Render("]"),
	)
}

func statsLines(stats domain.Stats, s styles) []string {
	lines := make([]string, 0, 4)
	if stats.DuplicateSegments > 0 {
		lines = append(lines, s.value.Render(fmt.Sprintf("duplicate segments ignored: %d", stats.DuplicateSegments)))
	}
	if stats.FilteredDoses > 0 {
		lines = append(lines, s.value.Render(fmt.Sprintf("zero-volume doses filtered: %d", stats.FilteredDoses)))
	}
	if stats.Fabricated > 0 {
		lines = append(lines, s.value.Render(fmt.Sprintf("fabricated entries: %d", stats.Fabricated)))
	}
	if stats.UnmatchedTerminations > 0 {
		lines = append(lines, s.warning.Render(fmt.Sprintf("unmatched terminations: %d", stats.UnmatchedTerminations)))
	}

	return lines
}

func renderEventList(events []domain.Event, s styles) string {
	lines := make([]string, 0, len(events)+1)
	lines = append(lines, s.value.Render("timeline:"))
	for _, ev := range events {
		line := fmt.Sprintf("%s  %s  %s", ev.Time.Format(time.RFC3339), ev.Family, ev.ID)
		if len(ev.Annotations) > 0 {
			codes := make([]string, 0, len(ev.Annotations))
			for _, a := range ev.Annotations {
				codes = append(codes, a.Code)
			}
			line += "  " + strings.Join(codes, ",")
		}
		lines = append(lines, s.header.Render(line))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderOffsetsView(rep application.OffsetsReport, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Timezone Offsets"),
		s.header.Render(fmt.Sprintf("zone: %s (%s)", rep.Zone, bootstrapLabel(rep.Bootstrapped))),
		s.section.Render(renderIntervals(rep.Intervals, s)),
		s.section.Render(renderLookupSummary(rep, opts, s)),
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func bootstrapLabel(bootstrapped bool) string {
	if bootstrapped {
		return "bootstrapped from clock edits"
	}

	return "zone database only"
}

func renderIntervals(intervals []domain.OffsetInterval, s styles) string {
	lines := []string{s.value.Render(fmt.Sprintf("intervals: %d", len(intervals)))}
	if len(intervals) == 0 {
		lines = append(lines, s.empty.Render("No offset intervals resolved."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, interval := range intervals {
		lines = append(lines, intervalLine(interval, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func intervalLine(interval domain.OffsetInterval, s styles) string {
	offset := s.label.Render(fmt.Sprintf("%+5d min", interval.OffsetMin))
	span := s.value.Render(fmt.Sprintf("%s .. %s", formatBound(interval.Start), interval.End.Format(time.RFC3339)))

	line := lipgloss.JoinHorizontal(lipgloss.Top, offset, "  ", span)
	if idx := indexSpan(interval); idx != "" {
		line = lipgloss.JoinHorizontal(lipgloss.Top, line, " ", s.header.Render(idx))
	}

	return line
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "start"
	}

	return t.Format(time.RFC3339)
}

func indexSpan(interval domain.OffsetInterval) string {
	if interval.StartIndex == nil && interval.EndIndex == nil {
		return ""
	}

	left, right := "", ""
	if interval.StartIndex != nil {
		left = fmt.Sprintf("%d", *interval.StartIndex)
	}
	if interval.EndIndex != nil {
		right = fmt.Sprintf("%d", *interval.EndIndex)
	}

	return fmt.Sprintf("(idx %s..%s)", left, right)
}

func renderLookupSummary(rep application.OffsetsReport, opts RenderOptions, s styles) string {
	lines := []string{s.value.Render(fmt.Sprintf("records resolved: %d", len(rep.Lookups)))}

	if opts.Verbose {
		for _, lookup := range rep.Lookups {
			lines = append(lines, s.header.Render(fmt.Sprintf("%s  local %s  utc %s  offset %+d",
				lookup.RecordID, lookup.Local, lookup.UTC.Format(time.RFC3339), lookup.OffsetMin)))
		}
	}

	if len(rep.Unresolved) > 0 {
		lines = append(lines, s.warning.Render(fmt.Sprintf("unresolved records: %d", len(rep.Unresolved))))
		for _, id := range rep.Unresolved {
			lines = append(lines, s.header.Render("  "+id))
		}
	}

	for _, d := range rep.Disagreements {
		lines = append(lines, s.warning.Render(fmt.Sprintf(
			"%s resolves to %+d min by index but %+d min by wall time", d.RecordID, d.ByIndexMin, d.ByTimeMin)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
