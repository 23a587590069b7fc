package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/yairfalse/karja/awscli"
	"github.com/yairfalse/karja/executor"
	"github.com/yairfalse/karja/guard"
	"github.com/yairfalse/karja/inventory"
	"github.com/yairfalse/karja/journal"
	"github.com/yairfalse/karja/profiles"
	"github.com/yairfalse/karja/types"
	"github.com/yairfalse/karja/view"
)

const (
	pageMain     = "main"
	pageConfirm  = "confirm"
	pageInspect  = "inspect"
	pageProfiles = "profiles"
)

// App is the interactive frontend. It owns the event loop; all tool
// invocations run on worker goroutines and report back through
// QueueUpdateDraw.
type App struct {
	app        *tview.Application
	pages      *tview.Pages
	grid       *tview.Grid
	header     *tview.TextView
	statusBar  *tview.TextView
	footer     *tview.TextView
	statusRow  *tview.Flex
	table      *tview.Table
	filterIn   *tview.InputField
	model      *Model
	service    *inventory.Service
	dispatcher *executor.Dispatcher
	profiles   *profiles.Store
	logger     zerolog.Logger
}

// NewApp wires the frontend. The app itself serves as the dispatcher's
// confirmer, so destructive actions pop a modal. Callers that want the
// color scheme run ApplyTheme first.
func NewApp(
	service *inventory.Service,
	g *guard.Guard,
	j *journal.Journal,
	store *profiles.Store,
	opts executor.Options,
	logger zerolog.Logger,
) *App {
	a := &App{
		app:      tview.NewApplication(),
		pages:    tview.NewPages(),
		model:    NewModel(),
		service:  service,
		profiles: store,
		logger:   logger,
	}
	a.dispatcher = executor.NewDispatcher(service, g, j, a, opts, logger)

	a.buildLayout()
	a.bindKeys()
	a.app.SetRoot(a.pages, true)
	return a
}

// Run starts the event loop and kicks off the first refresh.
func (a *App) Run() error {
	a.setStatus("[yellow]refreshing...[-]")
	a.refreshAsync("")
	return a.app.Run()
}

func (a *App) buildLayout() {
	a.header = tview.NewTextView()
	a.header.SetBorder(true)
	a.header.SetDynamicColors(true)

	a.statusBar = tview.NewTextView()
	a.statusBar.SetDynamicColors(true)

	a.footer = tview.NewTextView()
	a.footer.SetBorder(true)
	a.footer.SetDynamicColors(true)
	a.footer.SetTextAlign(tview.AlignCenter)
	a.footer.SetText(`[yellow]space[-] mark  [yellow]a[-] all  [yellow]r[-] refresh  [yellow]s[-] start  [yellow]x[-] stop  [yellow]X[-] terminate  [yellow]i[-] inspect  [yellow]p[-] profile  [yellow]/[-] filter  [yellow]c[-] clear  [yellow]q[-] quit`)

	a.table = tview.NewTable()
	a.table.SetBorder(true)
	a.table.SetTitle(" instances ")
	a.table.SetSelectable(true, false)
	a.table.SetFixed(1, 0)

	a.filterIn = tview.NewInputField()
	a.filterIn.SetLabel("/")
	a.filterIn.SetFieldWidth(0)
	a.filterIn.SetChangedFunc(func(text string) {
		a.model.SetFilter(text)
		a.renderTable()
	})
	a.filterIn.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			a.filterIn.SetText("")
			a.model.ClearFilter()
		}
		a.closeFilter()
		a.renderTable()
	})

	a.statusRow = tview.NewFlex()
	a.statusRow.AddItem(a.statusBar, 0, 1, false)

	a.grid = tview.NewGrid().
		SetRows(3, 0, 1, 3).
		SetColumns(0).
		SetBorders(false)
	a.grid.AddItem(a.header, 0, 0, 1, 1, 0, 0, false)
	a.grid.AddItem(a.table, 1, 0, 1, 1, 0, 0, true)
	a.grid.AddItem(a.statusRow, 2, 0, 1, 1, 0, 0, false)
	a.grid.AddItem(a.footer, 3, 0, 1, 1, 0, 0, false)

	a.pages.AddPage(pageMain, a.grid, true, true)
	a.updateHeader()
}

func (a *App) bindKeys() {
	a.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			a.inspectAsync()
			return nil
		}
		switch event.Rune() {
		case ' ':
			a.toggleCursor()
			return nil
		case 'a':
			a.model.ToggleAll()
			a.renderTable()
			return nil
		case 'r':
			a.setStatus("[yellow]refreshing...[-]")
			a.refreshAsync("")
			return nil
		case 's':
			a.actionAsync(types.ActionStart)
			return nil
		case 'x':
			a.actionAsync(types.ActionStop)
			return nil
		case 'X':
			a.actionAsync(types.ActionTerminate)
			return nil
		case 'i':
			a.inspectAsync()
			return nil
		case 'p':
			a.showProfilePicker()
			return nil
		case '/':
			a.openFilter()
			return nil
		case 'c':
			a.model.ClearMarks()
			a.renderTable()
			return nil
		case 'q':
			a.app.Stop()
			return nil
		}
		return event
	})
}

// renderTable redraws the instance table from the model. Must run on
// the UI goroutine.
func (a *App) renderTable() {
	a.table.Clear()

	headers := append([]string{" "}, view.Headers()...)
	for col, h := range headers {
		a.table.SetCell(0, col, tview.NewTableCell("[yellow::b]"+h+"[-::-]").
			SetSelectable(false))
	}

	for i, inst := range a.model.Visible() {
		row := i + 1
		mark := " "
		if a.model.IsMarked(inst.InstanceID) {
			mark = "[fuchsia]*[-]"
		}
		a.table.SetCell(row, 0, tview.NewTableCell(mark))

		for col, text := range view.Project(inst).Columns() {
			cell := tview.NewTableCell(text).SetAlign(tview.AlignLeft)
			switch col {
			case 3:
				cell.SetText(stateColor(inst.State) + text + "[-]")
			case 5:
				cell.SetExpansion(1)
			}
			a.table.SetCell(row, col+1, cell)
		}
	}

	a.table.SetTitle(fmt.Sprintf(" instances (%d) ", len(a.model.Visible())))
	a.clampCursor()
	a.updateHeader()
}

func (a *App) clampCursor() {
	count := len(a.model.Visible())
	if count == 0 {
		return
	}
	row, col := a.table.GetSelection()
	if row < 1 {
		row = 1
	}
	if row > count {
		row = count
	}
	a.table.Select(row, col)
}

func (a *App) updateHeader() {
	profile := a.service.Profile()
	if profile == "" {
		profile = "default"
	}
	region := a.service.Region()
	if region == "" {
		region = "auto"
	}

	text := fmt.Sprintf(" [::b]karja[::-]  profile [aqua]%s[-]  region [aqua]%s[-]", profile, region)
	if n := a.model.MarkedCount(); n > 0 {
		text += fmt.Sprintf("  [fuchsia]%d marked[-]", n)
	}
	if f := a.model.Filter(); f != "" {
		text += fmt.Sprintf("  filter [yellow]%s[-]", f)
	}
	a.header.SetText(text)
}

func (a *App) setStatus(text string) {
	a.statusBar.SetText(" " + text)
}

func (a *App) reportError(what string, err error) {
	if errors.Is(err, awscli.ErrBusy) {
		a.setStatus("[yellow]busy: another command is still running[-]")
		return
	}
	a.logger.Error().Err(err).Msg(what)
	a.setStatus(fmt.Sprintf("[red]%s: %v[-]", what, err))
}

func (a *App) cursorID() string {
	row, _ := a.table.GetSelection()
	inst, ok := a.model.InstanceAt(row - 1)
	if !ok {
		return ""
	}
	return inst.InstanceID
}

func (a *App) toggleCursor() {
	id := a.cursorID()
	if id == "" {
		return
	}
	a.model.Toggle(id)
	a.renderTable()
}

// refreshAsync re-reads the inventory on a worker goroutine. doneStatus
// replaces the default completion message, so action summaries survive
// the follow-up refresh.
func (a *App) refreshAsync(doneStatus string) {
	go func() {
		instances, err := a.service.Refresh(context.Background())
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.reportError("refresh failed", err)
				return
			}
			a.model.SetInstances(instances)
			a.renderTable()
			if doneStatus != "" {
				a.setStatus(doneStatus)
				return
			}
			a.setStatus(fmt.Sprintf("%d instances", len(instances)))
		})
	}()
}

func (a *App) actionAsync(action types.Action) {
	widened := a.model.MarkedCount() == 0
	targets := a.model.Targets(a.cursorID())
	if len(targets) == 0 {
		a.setStatus("[yellow]nothing selected[-]")
		return
	}

	if widened {
		// Nothing was marked, so the action fell back to the cursor row.
		a.setStatus(fmt.Sprintf("[yellow]%s %s (cursor row)...[-]", action, targets[0].InstanceID))
		a.logger.Info().Str("instance", targets[0].InstanceID).Str("action", string(action)).
			Msg("empty selection resolved to cursor row")
	} else {
		a.setStatus(fmt.Sprintf("[yellow]%s %d instance(s)...[-]", action, len(targets)))
	}
	go func() {
		result, err := a.dispatcher.Dispatch(context.Background(), action, targets)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.reportError(fmt.Sprintf("%s failed", action), err)
				return
			}
			a.model.ClearMarks()
			a.refreshAsync(summarize(result))
		})
	}()
}

func (a *App) inspectAsync() {
	widened := a.model.MarkedCount() == 0
	targets := a.model.Targets(a.cursorID())
	if len(targets) == 0 {
		a.setStatus("[yellow]nothing selected[-]")
		return
	}
	ids := make([]string, len(targets))
	for i, inst := range targets {
		ids[i] = inst.InstanceID
	}

	if widened {
		a.setStatus(fmt.Sprintf("[yellow]inspecting %s (cursor row)...[-]", ids[0]))
	} else {
		a.setStatus("[yellow]inspecting...[-]")
	}
	go func() {
		out, err := a.service.Inspect(context.Background(), ids)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.reportError("inspect failed", err)
				return
			}
			a.showInspect(ids, out)
			a.setStatus("")
		})
	}()
}

// showInspect displays the tool's raw output, untouched.
func (a *App) showInspect(ids []string, output string) {
	text := tview.NewTextView()
	text.SetBorder(true)
	text.SetTitle(fmt.Sprintf(" inspect: %s ", strings.Join(ids, ", ")))
	text.SetScrollable(true)
	text.SetWrap(false)
	text.SetText(output)
	text.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' || event.Rune() == 'i' {
			a.pages.RemovePage(pageInspect)
			a.app.SetFocus(a.table)
			return nil
		}
		return event
	})
	a.pages.AddPage(pageInspect, text, true, true)
	a.app.SetFocus(text)
}

func (a *App) showProfilePicker() {
	names, err := a.profiles.Names()
	if err != nil {
		a.reportError("failed to list profiles", err)
		return
	}

	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true)
	list.SetTitle(" profile ")
	list.AddItem("(no profile)", "", 0, func() { a.selectProfile("") })
	for _, name := range names {
		name := name
		list.AddItem(name, "", 0, func() { a.selectProfile(name) })
	}
	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			a.pages.RemovePage(pageProfiles)
			a.app.SetFocus(a.table)
			return nil
		}
		return event
	})

	height := len(names) + 3
	if height > 15 {
		height = 15
	}
	a.pages.AddPage(pageProfiles, center(list, 40, height), true, true)
	a.app.SetFocus(list)
}

func (a *App) selectProfile(name string) {
	a.pages.RemovePage(pageProfiles)
	a.app.SetFocus(a.table)
	a.service.SetProfile(name)
	a.updateHeader()
	a.setStatus("[yellow]refreshing...[-]")
	a.refreshAsync("")
}

func (a *App) openFilter() {
	a.filterIn.SetText(a.model.Filter())
	a.statusRow.Clear()
	a.statusRow.AddItem(a.filterIn, 0, 1, true)
	a.app.SetFocus(a.filterIn)
}

func (a *App) closeFilter() {
	a.statusRow.Clear()
	a.statusRow.AddItem(a.statusBar, 0, 1, false)
	a.app.SetFocus(a.table)
}

// Confirm implements executor.Confirmer with a modal. It runs on the
// dispatch goroutine, never the UI goroutine, so queueing the modal and
// blocking on the answer is safe.
func (a *App) Confirm(ctx context.Context, req executor.ConfirmationRequest) (bool, error) {
	answer := make(chan bool, 1)

	a.app.QueueUpdateDraw(func() {
		text := fmt.Sprintf("%s %d instance(s)?\n\n%s",
			strings.ToUpper(string(req.Action)), len(req.Instances), strings.Join(req.Instances, "\n"))
		if len(req.Reasons) > 0 {
			text += "\n\n" + strings.Join(req.Reasons, "\n")
		}

		modal := tview.NewModal().
			SetText(text).
			AddButtons([]string{"Cancel", "Confirm"}).
			SetDoneFunc(func(_ int, label string) {
				a.pages.RemovePage(pageConfirm)
				a.app.SetFocus(a.table)
				answer <- label == "Confirm"
			})
		// First button has focus, so plain Enter cancels.
		modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
			if event.Key() == tcell.KeyEscape {
				a.pages.RemovePage(pageConfirm)
				a.app.SetFocus(a.table)
				answer <- false
				return nil
			}
			return event
		})
		a.pages.AddPage(pageConfirm, modal, true, true)
	})

	select {
	case ok := <-answer:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func summarize(result *executor.Result) string {
	parts := make([]string, 0, 3)
	if result.SucceededCount > 0 {
		parts = append(parts, fmt.Sprintf("[green]%d ok[-]", result.SucceededCount))
	}
	if result.FailedCount > 0 {
		parts = append(parts, fmt.Sprintf("[red]%d failed[-]", result.FailedCount))
	}
	if result.SkippedCount > 0 {
		parts = append(parts, fmt.Sprintf("[yellow]%d skipped[-]", result.SkippedCount))
	}
	if len(parts) == 0 {
		return string(result.Action)
	}
	return fmt.Sprintf("%s: %s", result.Action, strings.Join(parts, " "))
}

func stateColor(state string) string {
	switch state {
	case "running":
		return "[green]"
	case "stopped":
		return "[red]"
	case "pending", "stopping":
		return "[yellow]"
	case "terminated", "shutting-down":
		return "[gray]"
	}
	return "[white]"
}

// center wraps a primitive in a grid that floats it mid-screen.
func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewGrid().
		SetColumns(0, width, 0).
		SetRows(0, height, 0).
		AddItem(p, 1, 1, 1, 1, 0, 0, true)
}
