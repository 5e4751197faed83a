package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/erazemk/gamelog/internal/backlog"
	"github.com/erazemk/gamelog/internal/model"
)

// printBoard writes every status group in board order.
func printBoard(w io.Writer, g backlog.Groups) {
	for i, status := range model.Statuses {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printGroup(w, status, g.Get(status))
	}
	if len(g.Unknown) > 0 {
		fmt.Fprintln(w)
		printGroup(w, "", g.Unknown)
	}
}

func printGroup(w io.Writer, status string, games []model.Game) {
	title := model.StatusLabel(status)
	if status == "" {
		title = "Other"
	}
	fmt.Fprintf(w, "%s (%d)\n", title, len(games))
	if len(games) == 0 {
		fmt.Fprintln(w, "  -")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, g := range games {
		cover := ""
		if g.HasCover() {
			cover = "[cover]"
		}
		fmt.Fprintf(tw, "  #%d\t%s\t%s\t%s\n", g.ID, g.Name, g.Platform, cover)
	}
	tw.Flush()
}

func printGame(w io.Writer, g *model.Game) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", g.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", g.Name)
	fmt.Fprintf(tw, "Platform:\t%s\n", g.Platform)
	fmt.Fprintf(tw, "Status:\t%s\n", model.StatusLabel(g.Status))
	if g.Description != "" {
		fmt.Fprintf(tw, "Description:\t%s\n", strings.ReplaceAll(g.Description, "\n", " "))
	}
	if g.HasCover() {
		fmt.Fprintf(tw, "Cover:\t%s\n", *g.CoverImage)
	}
	if !g.CreatedAt.IsZero() {
		fmt.Fprintf(tw, "Added:\t%s\n", g.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
