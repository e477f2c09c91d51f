package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/meucuidador/care-api/internal/client/notifpanel"
	"github.com/meucuidador/care-api/internal/model"
)

var (
	highColor   = color.New(color.FgRed, color.Bold)
	lowColor    = color.New(color.FgHiBlack)
	unreadColor = color.New(color.Bold)
	okColor     = color.New(color.FgGreen)
	headColor   = color.New(color.FgCyan, color.Bold)
)

func renderPatients(w io.Writer, patients []*model.Patient) {
	if len(patients) == 0 {
		fmt.Fprintln(w, "no patients")
		return
	}
	for _, p := range patients {
		line := fmt.Sprintf("%6d  %-30s %s", p.ID, p.Name, p.Email)
		if p.Age != nil {
			line += fmt.Sprintf("  (%d)", *p.Age)
		}
		fmt.Fprintln(w, line)
	}
}

func renderBasic(w io.Writer, patients []model.PatientBasic) {
	if len(patients) == 0 {
		fmt.Fprintln(w, "no accessible patients")
		return
	}
	for _, p := range patients {
		fmt.Fprintf(w, "%6d  %-30s %s\n", p.ID, p.Name, p.Email)
	}
}

func renderContext(w io.Writer, viewer model.Viewer, selected *model.Patient) {
	headColor.Fprintf(w, "%s (%s)\n", viewer.Name, viewer.ProfileType)
	if selected == nil {
		fmt.Fprintln(w, "viewing own records")
		return
	}
	fmt.Fprintf(w, "viewing %s (#%d)\n", selected.Name, selected.ID)
}

func renderNotifications(w io.Writer, unread int, items []model.Notification) {
	headColor.Fprintf(w, "%d unread\n", unread)
	for _, n := range items {
		renderNotification(w, n)
	}
}

func renderNotification(w io.Writer, n model.Notification) {
	marker := " "
	if !n.IsRead {
		marker = "*"
	}
	line := fmt.Sprintf("%s %6d [%-12s] %s: %s", marker, n.ID, notifpanel.Category(n), n.Title, n.Message)
	if n.PatientName != nil && *n.PatientName != "" {
		line += fmt.Sprintf(" (%s)", *n.PatientName)
	}

	switch {
	case strings.EqualFold(string(n.Priority), string(model.NotificationPriorityHigh)):
		highColor.Fprintln(w, line)
	case strings.EqualFold(string(n.Priority), string(model.NotificationPriorityLow)):
		lowColor.Fprintln(w, line)
	case !n.IsRead:
		unreadColor.Fprintln(w, line)
	default:
		fmt.Fprintln(w, line)
	}
}
