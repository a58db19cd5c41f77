package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/greenlight/internal/assessment"
	"github.com/kingrea/greenlight/internal/borrower"
	"github.com/kingrea/greenlight/internal/eventbridge"
	"github.com/kingrea/greenlight/internal/pipeline"
	"github.com/kingrea/greenlight/internal/staleness"
)

var (
	labelStyleCurrent = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleReady   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	labelStyleLocked  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	labelStyleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStyleFail    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	detailTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	bannerStyle       = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#FF6B6B")).
				Foreground(lipgloss.Color("#FF6B6B")).
				Padding(0, 1)
)

// step is one page of the assessment wizard.
type step int

const (
	stepInput step = iota
	stepNormalized
	stepRisk
	stepDecision
	stepUplift
	stepScenarios
	stepReview
)

var steps = []step{stepInput, stepNormalized, stepRisk, stepDecision, stepUplift, stepScenarios, stepReview}

func (s step) title() string {
	switch s {
	case stepInput:
		return "Input"
	case stepNormalized:
		return "Normalized"
	case stepRisk:
		return "Risk"
	case stepDecision:
		return "Decision"
	case stepUplift:
		return "Uplift"
	case stepScenarios:
		return "Scenarios"
	case stepReview:
		return "Review"
	}
	return "?"
}

// ready reports whether the artifacts a step displays have been published.
func (s step) ready(st pipeline.State) bool {
	switch s {
	case stepInput:
		return true
	case stepNormalized:
		return st.Normalized != nil
	case stepRisk:
		return st.Financial != nil && st.Sustainability != nil
	case stepDecision:
		return st.Decision != nil
	case stepUplift:
		return st.Uplift != nil
	case stepScenarios:
		return st.Scenarios != nil
	case stepReview:
		return st.Review != nil
	}
	return false
}

// furthest is the last step of the contiguous ready prefix.
func furthest(st pipeline.State) step {
	last := stepInput
	for _, s := range steps[1:] {
		if !s.ready(st) {
			break
		}
		last = s
	}
	return last
}

type pipelineEventMsg struct {
	event pipeline.Event
}

type runFinishedMsg struct {
	state pipeline.State
	err   error
}

// wizardView owns one assessment session: the input form, the staleness
// controller watching it, and the event stream that drives progressive
// reveal.
type wizardView struct {
	app *App

	step    step
	fields  []borrower.Spec
	cursor  int
	editing bool
	editor  textinput.Model
	spinner spinner.Model
	bar     progress.Model

	controller *staleness.Controller
	sub        *eventbridge.Subscription

	state     pipeline.State
	running   bool
	syncing   bool
	syncGen   uint64
	ticking   bool
	// awaiting is set when an interactive run lost to a newer one; the
	// wizard then follows whichever run lands next.
	awaiting  bool
	blocked   bool
	banner    string
	cancelRun context.CancelFunc
}

func newWizardView(app *App, resume bool) (*wizardView, error) {
	opts := []staleness.Option{staleness.WithLogger(app.logger)}
	if app.config != nil {
		opts = append(opts, staleness.WithDelay(app.config.Debounce()))
	}
	opts = append(opts, app.stalenessOpts...)
	controller, err := staleness.New(app.pipeline, app.store.Get, opts...)
	if err != nil {
		return nil, err
	}
	editor := textinput.New()
	editor.CharLimit = 400
	editor.Prompt = "› "
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 30

	v := &wizardView{
		app:        app,
		fields:     borrower.Fields(),
		editor:     editor,
		spinner:    sp,
		bar:        bar,
		controller: controller,
		state:      app.pipeline.Snapshot(),
	}
	if resume {
		v.step = furthest(v.state)
	}
	if app.router != nil {
		sub := app.router.Subscribe()
		v.sub = &sub
	}
	return v, nil
}

// Init starts listening for pipeline events.
func (v *wizardView) Init() tea.Cmd {
	return v.listen()
}

func (v *wizardView) listen() tea.Cmd {
	if v.sub == nil {
		return nil
	}
	events := v.sub.Events
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return nil
		}
		return pipelineEventMsg{event: event}
	}
}

func (v *wizardView) close() {
	v.controller.Stop()
	if v.cancelRun != nil {
		v.cancelRun()
	}
	if v.sub != nil {
		v.sub.Close()
	}
}

func (v *wizardView) resize(width int) {
	v.bar.Width = max(10, min(40, width/3))
	v.editor.Width = max(20, width-20)
}

func (v *wizardView) setStatus(msg string) {
	v.app.statusMsg = msg
}

// Update folds a message into the wizard.
func (v *wizardView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case pipelineEventMsg:
		return v.handleEvent(m.event)
	case runFinishedMsg:
		return v.handleRunFinished(m)
	case spinner.TickMsg:
		if !v.syncing {
			v.ticking = false
			return nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(m)
		return cmd
	case tea.KeyMsg:
		if v.editing {
			return v.handleEditKey(m)
		}
		return v.handleKey(m)
	}
	return nil
}

func (v *wizardView) handleEvent(event pipeline.Event) tea.Cmd {
	v.state = v.app.pipeline.Snapshot()
	cmds := []tea.Cmd{v.listen()}
	switch {
	case event.Type == pipeline.EventRunStart && event.Mode == pipeline.ModeBackground:
		if event.Generation >= v.syncGen {
			v.syncGen = event.Generation
			v.syncing = true
		}
		if v.syncing && !v.ticking {
			v.ticking = true
			cmds = append(cmds, v.spinner.Tick)
		}
	case event.Type.Terminal():
		// A superseded run reports after its successor has started; only the
		// run the indicator belongs to may clear it.
		if v.syncing && event.Generation == v.syncGen {
			v.syncing = false
		}
		if event.Type == pipeline.EventRunComplete && event.Mode == pipeline.ModeBackground {
			v.adoptBackgroundSuccess()
		}
	}
	return tea.Batch(cmds...)
}

// adoptBackgroundSuccess lifts a failure banner once the latest generation
// has succeeded in the background, and advances a wizard whose interactive
// run was superseded.
func (v *wizardView) adoptBackgroundSuccess() {
	if v.running || v.state.Phase != pipeline.PhaseSucceeded {
		return
	}
	v.blocked = false
	v.banner = ""
	if v.awaiting {
		v.awaiting = false
		v.step = stepNormalized
		v.setStatus("Assessment complete")
	}
}

func (v *wizardView) handleRunFinished(msg runFinishedMsg) tea.Cmd {
	v.running = false
	v.cancelRun = nil
	v.state = v.app.pipeline.Snapshot()
	if msg.err == nil {
		v.blocked = false
		v.banner = ""
		v.awaiting = false
		v.step = stepNormalized
		v.setStatus("Assessment complete")
		return nil
	}
	if errors.Is(msg.err, pipeline.ErrSuperseded) || errors.Is(msg.err, context.Canceled) {
		v.awaiting = true
		v.setStatus("Run superseded by a newer one")
		if v.state.Mode == pipeline.ModeBackground {
			// The newer run may already have landed.
			v.adoptBackgroundSuccess()
		}
		return nil
	}
	v.blocked = true
	v.awaiting = false
	v.step = stepInput
	v.banner = describeFailure(msg.err)
	v.setStatus("")
	return nil
}

func describeFailure(err error) string {
	var failure *pipeline.StageFailure
	if errors.As(err, &failure) {
		return fmt.Sprintf("Assessment failed at %s (%s): %v", failure.Stage, failure.Kind(), failure.Cause)
	}
	return fmt.Sprintf("Assessment failed: %v", err)
}

func (v *wizardView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab":
		v.moveStep(1)
		return nil
	case "shift+tab":
		v.moveStep(-1)
		return nil
	}
	if v.step != stepInput {
		return nil
	}
	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(v.fields)-1 {
			v.cursor++
		}
	case "left", "h":
		v.nudge(-1)
	case "right", "l":
		v.nudge(1)
	case "e":
		return v.beginEdit()
	case "enter":
		return v.startRun()
	}
	return nil
}

// moveStep walks between reached steps. After an interactive failure only
// the input step is reachable until a run succeeds.
func (v *wizardView) moveStep(delta int) {
	if v.running || v.blocked {
		return
	}
	target := v.step + step(delta)
	if target < stepInput || target > furthest(v.state) {
		return
	}
	v.step = target
}

func (v *wizardView) selected() borrower.Spec {
	return v.fields[v.cursor]
}

func (v *wizardView) nudge(steps int) {
	spec := v.selected()
	if spec.Kind != borrower.KindNumeric {
		return
	}
	prev, next, err := v.app.store.Nudge(spec.Name, steps)
	if err != nil {
		v.setStatus(err.Error())
		return
	}
	v.observe(prev, next)
}

func (v *wizardView) observe(prev, next borrower.Input) {
	if v.controller.Observe(prev, next) {
		v.setStatus("Change queued for re-scoring")
	}
}

func (v *wizardView) beginEdit() tea.Cmd {
	spec := v.selected()
	current, err := v.app.store.Get().Value(spec.Name)
	if err != nil {
		v.setStatus(err.Error())
		return nil
	}
	v.editing = true
	v.editor.SetValue(current)
	v.editor.CursorEnd()
	return v.editor.Focus()
}

func (v *wizardView) handleEditKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		v.editing = false
		v.editor.Blur()
		return nil
	case "enter":
		v.editing = false
		v.editor.Blur()
		prev, next, err := v.app.store.Set(v.selected().Name, v.editor.Value())
		if err != nil {
			v.setStatus(err.Error())
			return nil
		}
		v.observe(prev, next)
		return nil
	}
	var cmd tea.Cmd
	v.editor, cmd = v.editor.Update(msg)
	return cmd
}

func (v *wizardView) startRun() tea.Cmd {
	if v.running {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	v.running = true
	v.banner = ""
	v.cancelRun = cancel
	v.setStatus("Scoring…")
	orch := v.app.pipeline
	input := v.app.store.Get()
	return func() tea.Msg {
		defer cancel()
		state, err := orch.RunInteractive(ctx, input)
		return runFinishedMsg{state: state, err: err}
	}
}

// View renders the active step.
func (v *wizardView) View() string {
	sections := []string{v.renderStepBar()}
	if v.banner != "" {
		sections = append(sections, bannerStyle.Render(v.banner))
	}
	if v.syncing {
		sections = append(sections, labelStyleWarn.Render(v.spinner.View()+" syncing…"))
	}
	sections = append(sections, "", v.renderStep(), "", detailTextStyle.Render(v.help()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *wizardView) renderStepBar() string {
	reach := furthest(v.state)
	parts := make([]string, len(steps))
	for i, s := range steps {
		label := fmt.Sprintf("%d %s", i+1, s.title())
		switch {
		case s == v.step:
			parts[i] = labelStyleCurrent.Render("[" + label + "]")
		case s <= reach:
			parts[i] = labelStyleReady.Render(label)
		default:
			parts[i] = labelStyleLocked.Render(label)
		}
	}
	return strings.Join(parts, detailTextStyle.Render(" → "))
}

func (v *wizardView) help() string {
	if v.editing {
		return "enter save · esc cancel"
	}
	if v.step == stepInput {
		return "↑/↓ field · ←/→ adjust · e edit · enter score · tab next step · esc menu"
	}
	return "tab next · shift+tab back · esc menu"
}

func (v *wizardView) renderStep() string {
	switch v.step {
	case stepInput:
		return v.renderInput()
	case stepNormalized:
		return v.renderNormalized(v.state.Normalized)
	case stepRisk:
		return v.renderRisk(v.state.Financial, v.state.Sustainability)
	case stepDecision:
		return v.renderDecision(v.state.Decision)
	case stepUplift:
		return v.renderUplift(v.state.Uplift)
	case stepScenarios:
		return v.renderScenarios(v.state.Scenarios)
	case stepReview:
		return v.renderReview(v.state.Review)
	}
	return ""
}

func (v *wizardView) renderInput() string {
	in := v.app.store.Get()
	var b strings.Builder
	for i, spec := range v.fields {
		value, _ := in.Value(spec.Name)
		marker := "  "
		label := spec.Label
		if i == v.cursor {
			marker = "▸ "
			label = labelStyleCurrent.Render(label)
		}
		switch {
		case i == v.cursor && v.editing:
			value = v.editor.View()
		case spec.Kind == borrower.KindNumeric:
			value = fmt.Sprintf("%s %s", v.bar.ViewAs(spec.Fraction(in)), value)
		default:
			value = truncate(value, 60)
		}
		fmt.Fprintf(&b, "%s%-26s %s\n", marker, label, value)
	}
	if v.running {
		b.WriteString("\n")
		b.WriteString(v.renderStageChecklist())
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderStageChecklist reveals stages of the in-flight run as they land.
func (v *wizardView) renderStageChecklist() string {
	ids := v.app.pipeline.Graph().IDs()
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		status, ok := v.state.Stages[id]
		if !ok || status.Generation != v.state.Generation {
			status = pipeline.StageStatus{State: pipeline.StagePending}
		}
		var mark string
		switch status.State {
		case pipeline.StageComplete:
			mark = labelStyleReady.Render("✓")
		case pipeline.StageRunning:
			mark = labelStyleWarn.Render("…")
		case pipeline.StageFailed:
			mark = labelStyleFail.Render("✗")
		default:
			mark = labelStyleLocked.Render("·")
		}
		lines = append(lines, fmt.Sprintf("%s %s", mark, id))
	}
	return strings.Join(lines, "\n")
}

func (v *wizardView) scoreLine(label string, score float64) string {
	return fmt.Sprintf("%-22s %s %3.0f", label, v.bar.ViewAs(score/100), score)
}

func (v *wizardView) renderNormalized(n *assessment.NormalizedData) string {
	if n == nil {
		return labelStyleLocked.Render("Not scored yet.")
	}
	lines := []string{
		labelStyleCurrent.Render("Financial features"),
		v.scoreLine("Revenue", n.Financial.RevenueScore),
		v.scoreLine("Cash-flow stability", n.Financial.CashFlowStability),
		v.scoreLine("Debt ratio", n.Financial.DebtRatio),
		v.scoreLine("Credit", n.Financial.CreditScore),
		"",
		labelStyleCurrent.Render("Sustainability features"),
		v.scoreLine("Energy cleanliness", n.Sustainability.EnergyCleanliness),
		v.scoreLine("Carbon efficiency", n.Sustainability.CarbonEfficiency),
		v.scoreLine("Labor ethics", n.Sustainability.LaborEthics),
		v.scoreLine("Regulatory risk", n.Sustainability.RegulatoryRisk),
	}
	return strings.Join(lines, "\n")
}

func (v *wizardView) renderRisk(f *assessment.FinancialRisk, s *assessment.SustainabilityRisk) string {
	if f == nil || s == nil {
		return labelStyleLocked.Render("Not scored yet.")
	}
	lines := []string{
		labelStyleCurrent.Render(fmt.Sprintf("Financial risk · %s", f.Band)),
		v.scoreLine("Score", f.Score),
	}
	for _, entry := range f.Breakdown {
		lines = append(lines, v.scoreLine("  "+entry.Name, entry.Value))
	}
	lines = append(lines, detailTextStyle.Render(f.Summary), "",
		labelStyleCurrent.Render("Sustainability"),
		v.scoreLine("Score", s.Score))
	for _, sdg := range s.SDGs {
		full := sdg.FullMark
		if full <= 0 {
			full = 100
		}
		lines = append(lines, v.scoreLine("  "+sdg.Subject, sdg.A/full*100))
	}
	lines = append(lines, detailTextStyle.Render(s.ImpactDescription))
	return strings.Join(lines, "\n")
}

func (v *wizardView) renderDecision(d *assessment.Decision) string {
	if d == nil {
		return labelStyleLocked.Render("Not decided yet.")
	}
	style := labelStyleReady
	switch d.Status {
	case assessment.StatusConditional:
		style = labelStyleWarn
	case assessment.StatusRejected:
		style = labelStyleFail
	}
	return strings.Join([]string{
		style.Render(string(d.Status)),
		v.scoreLine("Green credit score", d.GreenCreditScore),
		fmt.Sprintf("APR adjustment: %s", d.APRAdjustment),
		"",
		detailTextStyle.Render(d.Justification),
	}, "\n")
}

func (v *wizardView) renderUplift(u *assessment.UpliftPlan) string {
	if u == nil {
		return labelStyleLocked.Render("No plan yet.")
	}
	lines := []string{
		v.scoreLine("Current", u.CurrentScore),
		v.scoreLine("Projected", u.ProjectedScore),
		"",
	}
	for _, rec := range u.Recommendations {
		lines = append(lines,
			labelStyleCurrent.Render(rec.Title)+" "+labelStyleReady.Render(rec.Impact),
			detailTextStyle.Render("  "+rec.Action))
	}
	return strings.Join(lines, "\n")
}

func (v *wizardView) renderScenarios(scenarios []assessment.ClimateScenario) string {
	if scenarios == nil {
		return labelStyleLocked.Render("Not simulated yet.")
	}
	if len(scenarios) == 0 {
		return detailTextStyle.Render("The oracle returned no scenarios.")
	}
	lines := make([]string, 0, len(scenarios)*2)
	for _, sc := range scenarios {
		lines = append(lines,
			v.scoreLine(sc.Scenario, sc.TotalScore),
			detailTextStyle.Render(fmt.Sprintf("  financial %+.0f · sustainability %+.0f", sc.FinancialImpact, sc.SustainabilityImpact)))
	}
	return strings.Join(lines, "\n")
}

func (v *wizardView) renderReview(r *assessment.ReviewSummary) string {
	if r == nil {
		return labelStyleLocked.Render("No review yet.")
	}
	lines := []string{labelStyleCurrent.Render("Key drivers")}
	for _, driver := range r.KeyDrivers {
		lines = append(lines, "  • "+driver)
	}
	lines = append(lines, "", labelStyleCurrent.Render("Risk highlights"))
	for _, h := range r.RiskHighlights {
		style := detailTextStyle
		switch h.Type {
		case assessment.HighlightWarning:
			style = labelStyleWarn
		case assessment.HighlightSuccess:
			style = labelStyleReady
		}
		lines = append(lines, style.Render(fmt.Sprintf("  [%s] %s", h.Type, h.Message)))
	}
	lines = append(lines, "",
		labelStyleCurrent.Render("Ethical considerations"), detailTextStyle.Render(r.EthicalConsiderations),
		"", labelStyleCurrent.Render("Suggested next steps"), detailTextStyle.Render(r.SuggestedNextSteps))
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
