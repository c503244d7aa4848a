// Package observability provides formatted output utilities for the gigmatch CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/gigmatch/internal/sweep"
	"github.com/jonathan/gigmatch/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for CLI commands
type Printer struct {
	out io.Writer
	now func() time.Time
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, now: time.Now}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func shortID(id fmt.Stringer) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// deadlineLabel describes a candidate deadline relative to now.
func (p *Printer) deadlineLabel(c types.Candidate) string {
	if c.AcceptanceDeadline == nil {
		return "no deadline"
	}
	left := c.AcceptanceDeadline.Sub(p.now())
	if left <= 0 {
		return "deadline passed"
	}
	return fmt.Sprintf("%s left", left.Truncate(time.Second))
}

// PrintBatch outputs a batch header and its candidates.
func (p *Printer) PrintBatch(b *types.BatchWithCandidates) {
	if b == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Batch:    %s (#%d)\n", b.Batch.ID, b.Batch.Sequence))
	sb.WriteString(fmt.Sprintf("Project:  %s\n", b.Batch.ProjectID))
	sb.WriteString(fmt.Sprintf("Type:     %s\n", b.Batch.Type))
	sb.WriteString(fmt.Sprintf("Status:   %s", b.Batch.Status))
	if b.Batch.NoExpire {
		sb.WriteString(" (no expiry)")
	}
	sb.WriteString("\n\n")

	if len(b.Candidates) == 0 {
		sb.WriteString("No candidates")
	} else {
		sb.WriteString(fmt.Sprintf("Candidates (%d):\n", len(b.Candidates)))
		for _, c := range b.Candidates {
			sb.WriteString(fmt.Sprintf("  • %-8s %-7s %-11s %s", shortID(c.DeveloperID), c.Level, c.ResponseStatus, p.deadlineLabel(c)))
			if c.IsFirstAccepted {
				sb.WriteString(" ★")
			}
			sb.WriteString("\n")
		}
	}

	p.printBox("BATCH", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCandidates outputs a developer's invitations under title.
func (p *Printer) PrintCandidates(title string, candidates []types.Candidate) {
	var sb strings.Builder
	if len(candidates) == 0 {
		sb.WriteString("Nothing to show")
		p.printBox(title, sb.String())
		return
	}

	count := min(len(candidates), maxItemsToShow)
	for i := 0; i < count; i++ {
		c := candidates[i]
		sb.WriteString(fmt.Sprintf("Project %s  %s\n", shortID(c.ProjectID), c.Source))
		if c.ResponseStatus == types.ResponsePending {
			sb.WriteString(fmt.Sprintf("    %s, %s\n", c.ResponseStatus, p.deadlineLabel(c)))
		} else if c.RespondedAt != nil {
			sb.WriteString(fmt.Sprintf("    %s at %s\n", c.ResponseStatus, c.RespondedAt.Format(time.RFC3339)))
		} else {
			sb.WriteString(fmt.Sprintf("    %s\n", c.ResponseStatus))
		}
	}
	if len(candidates) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more", len(candidates)-maxItemsToShow))
	}

	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRefresh outputs the outcome of a refresh request.
func (p *Printer) PrintRefresh(refreshed bool, fallback bool, b *types.BatchWithCandidates) {
	if !refreshed {
		p.printBox("REFRESH", "Nothing refreshed: the batch is not exhausted or the project is closed")
		return
	}
	msg := "New batch composed"
	if fallback {
		msg += " (previous candidates allowed back in)"
	}
	p.printBox("REFRESH", msg)
	p.PrintBatch(b)
}

// PrintSweepReport outputs the counters and failures of one sweep pass.
func (p *Printer) PrintSweepReport(r *sweep.Report) {
	if r == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Ran at:     %s (%s)\n", r.Now.Format(time.RFC3339), r.Duration.Truncate(time.Millisecond)))
	if r.LockBusy {
		sb.WriteString("Skipped: another sweep holds the lock")
		p.printBox("SWEEP", sb.String())
		return
	}

	sb.WriteString(fmt.Sprintf("Expired:    %d\n", r.Expired))
	sb.WriteString(fmt.Sprintf("Repaired:   %d projects, %d invalidated\n", r.ProjectsAssigned, r.Invalidated))
	sb.WriteString(fmt.Sprintf("Examined:   %d batches\n", r.Examined))
	sb.WriteString(fmt.Sprintf("Refreshed:  %d\n", len(r.Refreshed)))
	if r.RepairError != "" {
		sb.WriteString(fmt.Sprintf("Repair error: %s\n", r.RepairError))
	}

	if len(r.Failures) > 0 {
		sb.WriteString(fmt.Sprintf("\nFailures (%d):\n", len(r.Failures)))
		count := min(len(r.Failures), maxItemsToShow)
		for i := 0; i < count; i++ {
			f := r.Failures[i]
			sb.WriteString(fmt.Sprintf("  • batch %s: %s\n", shortID(f.BatchID), f.Error))
		}
		if len(r.Failures) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(r.Failures)-maxItemsToShow))
		}
	}

	p.printBox("SWEEP", strings.TrimSuffix(sb.String(), "\n"))
}
