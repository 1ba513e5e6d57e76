package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"orchestrator/cli/style"
	"orchestrator/cli/watch"
)

var watchFlags struct {
	level    string
	manual   bool
	plain    bool
	strict   bool
	notify   bool
	interval time.Duration
}

var watchCmd = &cobra.Command{
	Use:     "watch <deployment-id>",
	Short:   "Follow a deployment's steps and log live",
	Aliases: []string{"w", "logs"},
	Args:    cobra.ExactArgs(1),
	RunE:    runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVarP(&watchFlags.level, "level", "l", "all", "log filter: all, info, success, error")
	f.BoolVar(&watchFlags.manual, "manual", false, "start with polling off; refresh with r")
	f.BoolVar(&watchFlags.plain, "plain", false, "print new log lines instead of the interactive view")
	f.BoolVar(&watchFlags.strict, "strict-order", false, "drop responses older than the one shown")
	f.BoolVar(&watchFlags.notify, "notify", false, "poll immediately on server update notices")
	f.DurationVar(&watchFlags.interval, "interval", 0, "poll interval (default from config, 10s)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	id := args[0]
	level, err := watch.ParseLevel(watchFlags.level)
	if err != nil {
		return err
	}

	fl := cmd.Flags()
	interval := cfg.PollInterval
	if fl.Changed("interval") {
		interval = watchFlags.interval
	}
	manual := cfg.Manual || watchFlags.manual
	strict := cfg.StrictOrder || watchFlags.strict
	notify := cfg.Notify || watchFlags.notify

	changed := make(chan struct{}, 1)
	p := watch.New(id, client,
		watch.WithInterval(interval),
		watch.WithManual(manual),
		watch.WithStrictOrdering(strict),
		watch.WithLogger(log),
		watch.WithObserver(func(watch.View) {
			select {
			case changed <- struct{}{}:
			default:
			}
		}),
	)
	defer p.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if notify {
		go followNotices(ctx, p)
	}

	if err := p.Start(); err != nil {
		return err
	}

	if watchFlags.plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runPlainWatch(ctx, p, changed, level)
	}

	m := newWatchModel(p, watch.NewGateway(client, p, log), changed, level)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return err
	}
	if fe := final.(watchModel).fatal; fe != nil {
		return describe(fe)
	}
	return nil
}

// followNotices turns server update notices into immediate polls while the
// view is streaming. Failing to subscribe only costs latency.
func followNotices(ctx context.Context, p *watch.Poller) {
	ch, err := client.Subscribe(ctx, p.DeploymentID())
	if err != nil {
		log.Info("update notices unavailable", zap.Error(err))
		return
	}
	for n := range ch {
		log.Debug("update notice", zap.String("type", n.Type), zap.String("status", string(n.Status)))
		p.Nudge()
	}
}

// runPlainWatch prints lines as they appear until the run settles or ctx ends.
// In manual mode nothing polls again, so it returns after the first response.
func runPlainWatch(ctx context.Context, p *watch.Poller, changed <-chan struct{}, level watch.Level) error {
	printed := 0
	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
		v := p.View()
		if v.Err != nil {
			if msg := v.Err.Error(); msg != lastErr {
				fmt.Fprintln(os.Stderr, style.ToastError.Render("✗ "+msg))
				lastErr = msg
			}
			if fe, ok := v.Err.(*watch.FetchError); ok && (fe.Unauthorized() || v.State == watch.StateManual) {
				return describe(fe.Err)
			}
			continue
		}
		lastErr = ""
		if !v.Loaded {
			continue
		}
		// The log is append-only; a shorter one means the backend restarted it.
		if len(v.Lines) < printed {
			printed = 0
		}
		for _, line := range v.Lines[printed:] {
			if level.Match(line) {
				fmt.Println(line)
			}
		}
		printed = len(v.Lines)
		if v.Run.Status == "succeeded" || v.Run.Status == "failed" || v.State == watch.StateManual {
			fmt.Fprintf(os.Stderr, "deployment #%s %s (%d%%)\n", v.Run.ID, v.Run.Status, v.Percent)
			return nil
		}
	}
}

// --- Messages ---

type viewChanged struct{}

type resumeDone struct {
	notice watch.Notice
}

type noticeExpired struct{ seq int }

type exportDone struct{ notice watch.Notice }

// --- Model ---

type watchModel struct {
	poller  *watch.Poller
	gateway *watch.Gateway
	changed <-chan struct{}

	view    watch.View
	level   watch.Level
	spinner spinner.Model
	bar     progress.Model

	viewport viewport.Model
	ready    bool
	width    int
	height   int

	notice    watch.Notice
	noticeSeq int
	resuming  bool
	fatal     error
}

func newWatchModel(p *watch.Poller, g *watch.Gateway, changed <-chan struct{}, level watch.Level) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(style.Primary)

	return watchModel{
		poller:  p,
		gateway: g,
		changed: changed,
		view:    p.View(),
		level:   level,
		spinner: s,
		bar:     newProgressBar(40),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForView(m.changed))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.bar.Width = min(40, max(10, msg.Width-20))
		if !m.ready {
			m.viewport = viewport.New(msg.Width, 0)
			m.ready = true
		}
		m.viewport.Width = msg.Width
		m.fitViewport()
		m.refreshLog(true)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case viewChanged:
		atBottom := !m.ready || m.viewport.AtBottom()
		m.view = m.poller.View()
		if fe, ok := m.view.Err.(*watch.FetchError); ok && fe.Unauthorized() {
			m.fatal = fe.Err
			return m, tea.Quit
		}
		m.fitViewport()
		m.refreshLog(atBottom)
		return m, waitForView(m.changed)

	case resumeDone:
		m.resuming = false
		return m.toast(msg.notice)

	case exportDone:
		return m.toast(msg.notice)

	case noticeExpired:
		if msg.seq == m.noticeSeq {
			m.notice = watch.Notice{}
		}
		return m, nil
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "p":
		if _, err := m.poller.TogglePause(); err != nil {
			return m.toast(watch.Notice{Level: watch.NoticeError, Text: err.Error()})
		}
		m.view.State = m.poller.State()
		return m, nil
	case "s":
		if _, err := m.poller.ToggleStreaming(); err != nil {
			return m.toast(watch.Notice{Level: watch.NoticeError, Text: err.Error()})
		}
		m.view.State = m.poller.State()
		return m, nil
	case "r":
		if err := m.poller.Refresh(); err != nil {
			return m.toast(watch.Notice{Level: watch.NoticeError, Text: err.Error()})
		}
		return m, nil
	case "f":
		m.level = m.level.Next()
		m.refreshLog(true)
		return m, nil
	case "R":
		if m.resuming {
			return m, nil
		}
		m.resuming = true
		return m, resumeCmd(m.gateway, m.view.Run)
	case "d":
		return m, downloadCmd(m.view.Run.ID, m.view.Lines)
	case "c":
		return m, copyCmd(m.view.Lines)
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) toast(n watch.Notice) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	m.notice = n
	seq := m.noticeSeq
	return m, tea.Tick(4*time.Second, func(time.Time) tea.Msg { return noticeExpired{seq: seq} })
}

func (m *watchModel) refreshLog(follow bool) {
	if !m.ready {
		return
	}
	lines := watch.FilterLines(m.view.Lines, m.level)
	if len(lines) == 0 {
		m.viewport.SetContent(style.DimText.Render(emptyLogText(m.view)))
	} else {
		m.viewport.SetContent(renderLines(lines))
	}
	if follow {
		m.viewport.GotoBottom()
	}
}

func emptyLogText(v watch.View) string {
	switch {
	case !v.Loaded && v.Loading:
		return "Loading logs..."
	case !v.Loaded:
		return "Waiting for the first response..."
	case len(v.Lines) == 0:
		return "No logs available."
	}
	return "No log lines match this filter."
}

// fitViewport gives the log whatever rows the header, steps and footer leave.
func (m *watchModel) fitViewport() {
	if !m.ready {
		return
	}
	m.viewport.Height = max(3, m.height-m.chromeHeight())
}

// chromeHeight is the number of rows around the log viewport.
func (m watchModel) chromeHeight() int {
	return 9 + len(m.view.Steps)
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(renderHeader(m.view.Run))
	b.WriteString("  ")
	b.WriteString(stateBadge(m.view.State, m.poller.Interval()))
	if m.view.Loading {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	b.WriteString(renderSteps(m.view.Steps, m.spinner.View()))
	b.WriteString("\n\n  ")
	b.WriteString(m.bar.ViewAs(float64(m.view.Percent) / 100))
	b.WriteString("\n")

	if m.view.Err != nil {
		b.WriteString(style.ErrorBox.Render("✗ " + m.view.Err.Error()))
		b.WriteString("\n")
	}

	filtered := len(watch.FilterLines(m.view.Lines, m.level))
	b.WriteString(style.TableHeader.Render(fmt.Sprintf("Logs  %s  showing %d of %d lines", m.level, filtered, len(m.view.Lines))))
	b.WriteString("\n")
	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(style.DimText.Render(emptyLogText(m.view)))
	}
	b.WriteString("\n")

	switch {
	case m.resuming:
		b.WriteString(m.spinner.View() + style.DimText.Render(" Resuming..."))
	case m.notice.Text != "":
		b.WriteString(renderNotice(m.notice))
	default:
		b.WriteString(style.DimText.Render(keyHelp(m.view)))
	}
	return b.String()
}

func keyHelp(v watch.View) string {
	help := "p pause • s streaming • r refresh • f filter • d download • c copy • q quit"
	if v.Run.Failed() {
		help = "R resume • " + help
	}
	if !v.UpdatedAt.IsZero() {
		help += "  (updated " + v.UpdatedAt.Format("15:04:05") + ")"
	}
	return help
}

func stateBadge(s watch.State, every time.Duration) string {
	switch s {
	case watch.StateStreaming:
		return style.BadgeStreaming.Render("STREAMING " + every.String())
	case watch.StatePaused:
		return style.BadgePaused.Render("PAUSED")
	case watch.StateManual:
		return style.BadgeManual.Render("MANUAL")
	}
	return style.BadgeManual.Render(strings.ToUpper(s.String()))
}

func renderNotice(n watch.Notice) string {
	switch n.Level {
	case watch.NoticeError:
		return style.ToastError.Render("✗ " + n.Text)
	case watch.NoticeSuccess:
		return style.Toast.Render("✓ " + n.Text)
	}
	return style.LogInfo.Render("ℹ " + n.Text)
}

// --- Commands ---

// waitForView blocks until the poller publishes a change.
func waitForView(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return viewChanged{}
	}
}

func resumeCmd(g *watch.Gateway, run watch.Run) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		n, _ := g.Resume(ctx, run)
		return resumeDone{notice: n}
	}
}

func downloadCmd(id string, lines []string) tea.Cmd {
	return func() tea.Msg {
		name := watch.LogFileName(id)
		if err := watch.WriteLogFile(name, lines); err != nil {
			return exportDone{notice: watch.Notice{Level: watch.NoticeError, Text: err.Error()}}
		}
		return exportDone{notice: watch.Notice{Level: watch.NoticeSuccess, Text: "Saved " + name}}
	}
}

func copyCmd(lines []string) tea.Cmd {
	return func() tea.Msg {
		if err := watch.CopyLog(lines); err != nil {
			return exportDone{notice: watch.Notice{Level: watch.NoticeError, Text: err.Error()}}
		}
		return exportDone{notice: watch.Notice{Level: watch.NoticeSuccess, Text: fmt.Sprintf("Copied %d lines", len(lines))}}
	}
}
