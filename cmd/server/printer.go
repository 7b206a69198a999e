package main

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"

	"github.com/GriffinCanCode/livecode/internal/console"
)

var (
	colorBlue   = lipgloss.Color("39")
	colorYellow = lipgloss.Color("228")
	colorRed    = lipgloss.Color("196")
	colorGreen  = lipgloss.Color("82")
	colorGray   = lipgloss.Color("240")

	levelStyles = map[console.Level]lipgloss.Style{
		console.LevelLog:   lipgloss.NewStyle(),
		console.LevelInfo:  lipgloss.NewStyle().Foreground(colorBlue),
		console.LevelWarn:  lipgloss.NewStyle().Foreground(colorYellow),
		console.LevelError: lipgloss.NewStyle().Foreground(colorRed).Bold(true),
	}
	tagStyle     = lipgloss.NewStyle().Foreground(colorGray).Width(8)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorGray).Italic(true)
	successStyle = lipgloss.NewStyle().Foreground(colorGreen)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed)
)

type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, json: format == "json"}
}

func (p *printer) records(records []console.Record) error {
	if p.json {
		for _, rec := range records {
			if err := p.line(rec); err != nil {
				return err
			}
		}
		return nil
	}
	if len(records) == 0 {
		_, err := fmt.Fprintln(p.w, mutedStyle.Render("(no console output)"))
		return err
	}
	for _, rec := range records {
		style := levelStyles[rec.Level]
		if _, err := fmt.Fprintln(p.w, tagStyle.Render("["+string(rec.Level)+"]")+" "+style.Render(rec.Message)); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) dom(html string) error {
	if p.json {
		return p.line(map[string]string{"dom": html})
	}
	_, err := fmt.Fprintln(p.w, html)
	return err
}

func (p *printer) line(v any) error {
	b, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(b))
	return err
}
