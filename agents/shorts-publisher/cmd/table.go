package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"shorts-stack/internal/models"
)

func renderVideoTable(videos []models.VideoItem, decorate bool) string {
	tw := table.NewWriter()
	if decorate {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	tw.AppendHeader(table.Row{"ID", "Status", "Topic", "Scheduled", "Published", "Retention"})
	for _, v := range videos {
		retention := "-"
		if v.Analytics != nil {
			retention = fmt.Sprintf("%.0f%%", v.Analytics.RetentionRate)
		}
		tw.AppendRow(table.Row{v.ID, string(v.Status), v.Topic, deref(v.ScheduledFor), deref(v.PublishedAt), retention})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 40},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func shouldDecorate(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
