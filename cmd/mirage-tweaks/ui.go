//go:build windows

package main

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"mirage-tweaks/pkg/tweak"
)

const (
	maxLogLines  = 200
	refreshEvery = 250 * time.Millisecond
)

type liveness interface {
	Alive() bool
}

type tweakRow struct {
	entry tweak.Entry
	err   error // last failed operation
}

// logLine is one pane entry. An exact repeat of the previous entry bumps
// count instead of adding a line.
type logLine struct {
	tweak string // display name, empty for app-wide lines
	text  string // escaped and colored
	count int
}

func (l logLine) render() string {
	var b strings.Builder
	if l.tweak != "" {
		b.WriteString(colorTag(uiTheme.accent))
		b.WriteString(tview.Escape(l.tweak))
		b.WriteString(": ")
	}
	b.WriteString(l.text)
	if l.count > 1 {
		fmt.Fprintf(&b, " (x%d)", l.count)
	}
	return b.String()
}

type ui struct {
	app    *tview.Application
	reg    *tweak.Registry
	target liveness
	label  string
	pane   *paneWriter

	table  *tview.Table
	log    *tview.TextView
	status *tview.TextView
	root   tview.Primitive

	rows     []tweakRow
	logLines []logLine
	ticks    int
}

// newUI builds the layout and starts polling reg until done is closed.
func newUI(app *tview.Application, reg *tweak.Registry, target liveness, label string, pane *paneWriter, done <-chan struct{}) *ui {
	u := &ui{
		app:    app,
		reg:    reg,
		target: target,
		label:  label,
		pane:   pane,
	}

	u.table = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	applyTableTheme(u.table)
	u.table.SetTitle(" Tweaks (space=toggle, enter=edit, +/-=nudge, r=reset) ").SetBorder(true)
	u.table.SetSelectionChangedFunc(func(int, int) {
		u.updateStatus()
	})

	u.log = tview.NewTextView().
		SetScrollable(true).
		SetWrap(true)
	u.log.SetBorder(true).SetTitle(" Log (c=clear) ")
	u.log.SetBackgroundColor(uiTheme.surface)
	u.log.SetBorderColor(uiTheme.accent)
	u.log.SetTitleColor(uiTheme.accent)
	u.log.SetTextColor(uiTheme.text)
	u.log.SetDynamicColors(true)

	u.status = tview.NewTextView().
		SetScrollable(false).
		SetWrap(false)
	u.status.SetDynamicColors(false)
	u.status.SetBorder(false)
	u.status.SetBackgroundColor(uiTheme.headerBg)
	u.status.SetTextColor(uiTheme.accent)

	u.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(u.table, 0, 1, true).
		AddItem(u.log, 0, 1, false).
		AddItem(u.status, 1, 0, false)

	u.showWelcome()
	u.bindKeys()
	u.render(-1)
	u.updateStatus()
	go u.refreshLoop(done)

	return u
}

func (u *ui) layout() tview.Primitive {
	return u.root
}

func (u *ui) bindKeys() {
	u.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter:
			u.editValue()
			return nil
		case tcell.KeyTab:
			u.app.SetFocus(u.log)
			return nil
		}
		switch event.Rune() {
		case ' ', 'e', 'E':
			u.toggle()
			return nil
		case '+', '=':
			u.nudge(1)
			return nil
		case '-', '_':
			u.nudge(-1)
			return nil
		case 'r', 'R':
			u.reset()
			return nil
		case 'c', 'C':
			u.clearLog()
			return nil
		}
		return event
	})

	u.log.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyTab, tcell.KeyBacktab:
			u.app.SetFocus(u.table)
			return nil
		}
		switch event.Rune() {
		case 'c', 'C':
			u.clearLog()
			return nil
		}
		return event
	})
}

// refreshLoop stops once done is closed, so nothing is queued on an
// application that has already stopped.
func (u *ui) refreshLoop(done <-chan struct{}) {
	ticker := time.NewTicker(refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			u.app.QueueUpdateDraw(u.refresh)
		}
	}
}

// refresh picks up newly published tweaks and pending log lines.
func (u *ui) refresh() {
	u.ticks++
	for _, line := range u.pane.drain() {
		u.appendLog(formatLogLine(line, u.nameOf))
	}

	entries := u.reg.Snapshot()
	if len(entries) > len(u.rows) {
		for _, e := range entries[len(u.rows):] {
			u.rows = append(u.rows, tweakRow{entry: e})
		}
		u.render(-1)
	}
	u.updateStatus()
}

func (u *ui) render(selectIdx int) {
	prev := u.selectedRow()

	u.table.Clear()
	u.table.SetCell(0, 0, header("Tweak"))
	u.table.SetCell(0, 1, header("On"))
	u.table.SetCell(0, 2, header("Value"))
	u.table.SetCell(0, 3, header("Range"))
	u.table.SetCell(0, 4, header("Effect"))
	u.table.SetCell(0, 5, header("Status").SetExpansion(1))

	if len(u.rows) == 0 {
		u.table.SetCell(1, 0, tview.NewTableCell("scanning target memory...").
			SetSelectable(false).
			SetTextColor(uiTheme.subtleText).
			SetBackgroundColor(uiTheme.surface))
		return
	}

	for i, r := range u.rows {
		row := i + 1
		u.table.SetCell(row, 0, bodyCell(r.entry.Name, row))

		tw := r.entry.Tweak
		if tw == nil {
			u.table.SetCell(row, 1, bodyCell("[ ]", row).SetTextColor(uiTheme.subtleText))
			u.table.SetCell(row, 2, bodyCell("-", row).SetTextColor(uiTheme.subtleText))
			u.table.SetCell(row, 3, bodyCell("-", row).SetTextColor(uiTheme.subtleText))
			u.table.SetCell(row, 4, bodyCell("-", row).SetTextColor(uiTheme.subtleText))
			u.table.SetCell(row, 5, bodyCell(errorText(r.entry.Err), row).SetTextColor(uiTheme.danger))
			continue
		}

		on := bodyCell("[ ]", row)
		if tw.Enabled() {
			on = bodyCell("[X]", row).SetTextColor(uiTheme.warm)
		}
		u.table.SetCell(row, 1, on)
		u.table.SetCell(row, 2, bodyCell(formatValue(tw.Value()), row))
		b := tw.Bounds()
		u.table.SetCell(row, 3, bodyCell(fmt.Sprintf("%s..%s (default %s)", formatValue(b.Min), formatValue(b.Max), formatValue(b.Default)), row))
		u.table.SetCell(row, 4, bodyCell(tw.Intent().String(), row).SetTextColor(uiTheme.subtleText))

		status := bodyCell("", row)
		switch {
		case r.err != nil:
			status = bodyCell(errorText(r.err), row).SetTextColor(uiTheme.danger)
		case tw.Enabled():
			status = bodyCell("active", row).SetTextColor(uiTheme.accent)
		}
		u.table.SetCell(row, 5, status)
	}

	switch {
	case selectIdx >= 0 && selectIdx < len(u.rows):
	case prev >= 0:
		selectIdx = prev
	default:
		selectIdx = 0
	}
	u.table.Select(selectIdx+1, 0)
}

// selectedRow maps the table cursor to an index into u.rows, or -1 on the
// header or placeholder row.
func (u *ui) selectedRow() int {
	row, _ := u.table.GetSelection()
	if row < 1 || row > len(u.rows) {
		return -1
	}
	return row - 1
}

// selected returns the selected row if its tweak was built.
func (u *ui) selected() (int, tweak.Tweak) {
	idx := u.selectedRow()
	if idx < 0 {
		return -1, nil
	}
	e := u.rows[idx].entry
	if e.Tweak == nil {
		u.logf(e.Name, "unavailable: %s", errorText(e.Err))
		return -1, nil
	}
	return idx, e.Tweak
}

// nameOf resolves a tweak key to its display name once the tweak is listed.
func (u *ui) nameOf(key string) string {
	for _, r := range u.rows {
		if r.entry.Key == key {
			return r.entry.Name
		}
	}
	return key
}

func (u *ui) toggle() {
	idx, tw := u.selected()
	if tw == nil {
		return
	}
	if tw.Enabled() {
		tw.Disable()
		u.rows[idx].err = nil
	} else {
		u.rows[idx].err = tw.Enable()
	}
	u.render(idx)
	u.updateStatus()
}

// nudge moves the value one percent of the range, held to the bounds and
// then to the tweak's clamp.
func (u *ui) nudge(dir float64) {
	idx, tw := u.selected()
	if tw == nil {
		return
	}
	b := tw.Bounds()
	v := nudgeValue(tw.Value(), dir, b, tw.Clamp())
	if v == tw.Value() {
		return
	}
	u.setValue(idx, tw, v)
}

func nudgeValue(cur, dir float64, b tweak.Bounds, clamp tweak.Clamp) float64 {
	v := cur + dir*b.Step()
	v = math.Round(v*1e6) / 1e6 // drop float noise from repeated steps
	v = math.Min(math.Max(v, b.Min), b.Max)
	return clamp.Apply(v, b.Default)
}

func (u *ui) reset() {
	idx, tw := u.selected()
	if tw == nil {
		return
	}
	u.rows[idx].err = tw.ResetValue()
	u.render(idx)
	u.updateStatus()
}

func (u *ui) setValue(idx int, tw tweak.Tweak, v float64) {
	u.rows[idx].err = tw.SetValue(v)
	u.render(idx)
	u.updateStatus()
}

func (u *ui) editValue() {
	idx, tw := u.selected()
	if tw == nil {
		return
	}
	b := tw.Bounds()
	input := tview.NewInputField().
		SetLabel(fmt.Sprintf("%s (%s..%s) ", tw.Name(), formatValue(b.Min), formatValue(b.Max))).
		SetText(formatValue(tw.Value()))
	enabled := tview.NewCheckbox().
		SetLabel("Enabled ").
		SetChecked(tw.Enabled())

	closeForm := func() {
		u.app.SetRoot(u.layout(), true)
		u.app.SetFocus(u.table)
	}

	form := tview.NewForm().
		AddFormItem(input).
		AddFormItem(enabled).
		AddButton("Save", func() {
			v, err := parseValue(input.GetText(), b)
			if err != nil {
				input.SetLabel("Invalid value ")
				u.logf(tw.Name(), "%v", err)
				return
			}
			u.rows[idx].err = tw.SetValue(v)
			switch {
			case enabled.IsChecked() && !tw.Enabled():
				u.rows[idx].err = tw.Enable()
			case !enabled.IsChecked() && tw.Enabled():
				tw.Disable()
			}
			closeForm()
			u.render(idx)
			u.updateStatus()
		}).
		AddButton("Cancel", closeForm)
	form.SetBorder(true).SetTitle("Edit " + tw.Name())
	applyFormTheme(form)

	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(nil, 0, 1, false).
			AddItem(form, 50, 0, true).
			AddItem(nil, 0, 1, false), 9, 0, true).
		AddItem(nil, 0, 1, false)

	u.app.SetRoot(modal, true)
	u.app.SetFocus(input)
}

func parseValue(text string, b tweak.Bounds) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("enter a value")
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, parseNumericError(text, err)
	}
	if !b.Contains(v) {
		return 0, fmt.Errorf("%s is outside %s..%s", text, formatValue(b.Min), formatValue(b.Max))
	}
	return v, nil
}

func parseNumericError(text string, err error) error {
	var nerr *strconv.NumError
	if errors.As(err, &nerr) {
		switch {
		case errors.Is(nerr.Err, strconv.ErrRange):
			return fmt.Errorf("invalid value: out of range")
		case errors.Is(nerr.Err, strconv.ErrSyntax):
			return fmt.Errorf("invalid value: enter a number (got %q)", text)
		}
	}
	return fmt.Errorf("invalid value: %v", err)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func errorText(err error) string {
	if err == nil {
		return "unavailable"
	}
	return err.Error()
}

// appendLog adds a pane entry, folding an exact repeat of the last one.
func (u *ui) appendLog(tweak, text string) {
	if n := len(u.logLines); n > 0 && u.logLines[n-1].tweak == tweak && u.logLines[n-1].text == text {
		u.logLines[n-1].count++
	} else {
		u.logLines = append(u.logLines, logLine{tweak: tweak, text: text, count: 1})
		if over := len(u.logLines) - maxLogLines; over > 0 {
			u.logLines = u.logLines[over:]
		}
	}

	var b strings.Builder
	for i, l := range u.logLines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.render())
	}
	u.log.SetText(b.String())
	u.log.ScrollToEnd()
}

// logf records a UI-side event about the named tweak, or the app when tweak is empty.
func (u *ui) logf(tweak, format string, args ...interface{}) {
	u.appendLog(tweak, colorTag(uiTheme.text)+tview.Escape(fmt.Sprintf(format, args...)))
}

func (u *ui) clearLog() {
	u.logLines = nil
	u.log.Clear()
}

func (u *ui) showWelcome() {
	u.appendLog("", "[lightgreen]Attached to "+tview.Escape(u.label))
	u.appendLog("", "[lightcyan]Tweaks appear above as soon as their signatures are found.")
	u.appendLog("", "[lightcyan]Settings are saved on every change and restored on the next start.")
}

var tweakField = regexp.MustCompile(` tweak=("(?:[^"\\]|\\.)*"|\S+)`)

// formatLogLine colors a logrus text line by level. Its tweak field, if any,
// is cut from the text and returned as that tweak's display name.
func formatLogLine(line string, nameOf func(key string) string) (tweak, text string) {
	if m := tweakField.FindStringSubmatchIndex(line); m != nil {
		key := line[m[2]:m[3]]
		if unquoted, err := strconv.Unquote(key); err == nil {
			key = unquoted
		}
		tweak = nameOf(key)
		line = line[:m[0]] + line[m[1]:]
	}

	color := uiTheme.text
	switch {
	case strings.Contains(line, "level=error"), strings.Contains(line, "level=fatal"):
		color = uiTheme.danger
	case strings.Contains(line, "level=warning"):
		color = uiTheme.warm
	case strings.Contains(line, "level=debug"):
		color = uiTheme.subtleText
	}
	return tweak, colorTag(color) + tview.Escape(line)
}

func (u *ui) updateStatus() {
	text := u.label
	color := uiTheme.accent

	if !u.reg.Ready() {
		text = fmt.Sprintf("%s scanning%s", u.label, strings.Repeat(".", u.ticks%4))
	}
	if idx := u.selectedRow(); idx >= 0 {
		r := u.rows[idx]
		switch {
		case r.entry.Err != nil:
			text, color = fmt.Sprintf("%s: %s", r.entry.Name, r.entry.Err), uiTheme.danger
		case r.err != nil:
			text, color = fmt.Sprintf("%s: %s", r.entry.Name, r.err), uiTheme.danger
		}
	}
	if u.target != nil && !u.target.Alive() {
		text, color = u.label+" has exited; patches can no longer be applied", uiTheme.danger
	}

	u.status.SetTextColor(color)
	u.status.SetText(text)
}
