package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/rpggio/promptkeeper/internal/domain/prompt"
)

const previewWidth = 48

// PrintTableNoPad renders rows as a table without row padding.
func PrintTableNoPad(w io.Writer, rows pterm.TableData, hasHeader bool) error {
	rendered, err := pterm.DefaultTable.WithHasHeader(hasHeader).WithData(rows).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewWidth {
		return text
	}
	return string(runes[:previewWidth-1]) + "…"
}

func formatTime(ts *prompt.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return "-"
	}
	return ts.Local().Format(time.DateTime)
}

func promptRows(prompts []prompt.Prompt) pterm.TableData {
	rows := pterm.TableData{{"ID", "Title", "Content", "Tags", "Uses", "Fav"}}
	for _, p := range prompts {
		fav := ""
		if p.Favorite {
			fav = "★"
		}
		tags := "-"
		if len(p.Tags) > 0 {
			tags = strings.Join(p.Tags, ",")
		}
		rows = append(rows, []string{
			p.ID,
			p.Title,
			preview(p.Content),
			tags,
			pterm.Sprint(p.UsageCount),
			fav,
		})
	}
	return rows
}
