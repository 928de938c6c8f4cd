// Package tui renders the game in the terminal: name entry, the scene
// viewport with its typewriter reveal, the stats sidebar, the choice
// list and the settings panel.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/dreamcage/internal/audio"
	"github.com/tatianab/dreamcage/internal/config"
	"github.com/tatianab/dreamcage/internal/models"
	"github.com/tatianab/dreamcage/internal/session"
	"github.com/tatianab/dreamcage/internal/typewriter"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	narrativeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE"))

	cueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#777777")).
			Italic(true)

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BBBBBB")).
			PaddingLeft(2)

	selectedChoiceStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#EEEEEE")).
				Background(lipgloss.Color("#5F5F87")).
				Bold(true).
				PaddingLeft(1)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	victoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)
)

type sceneReadyMsg struct {
	err error
}

type typeTickMsg struct{}

// settingsField is one editable row of the settings panel.
type settingsField struct {
	label  string
	toggle bool // enter flips the value instead of editing text
	get    func(c *models.UserConfig) string
	set    func(c *models.UserConfig, v string)
}

type settingsPanel struct {
	fields  []settingsField
	cursor  int
	editing bool
	input   textinput.Model
}

type model struct {
	sess  *session.Session
	store *config.Store
	cfg   models.UserConfig
	decks *audio.DeckPair
	sfx   *audio.Emitter

	nameInput textinput.Model
	viewport  viewport.Model
	spin      spinner.Model
	tw        typewriter.Typewriter

	cursor   int
	mode     models.Mode
	settings *settingsPanel
	err      error
	width    int
	height   int
}

// NewModel wires the state machine and its collaborators into a Bubble
// Tea model and starts the menu music.
func NewModel(sess *session.Session, store *config.Store, decks *audio.DeckPair, sfx *audio.Emitter, cfg models.UserConfig) model {
	ti := textinput.New()
	ti.Placeholder = session.DefaultPlayerName
	ti.Focus()
	ti.CharLimit = 24
	ti.Width = 30

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cueStyle

	m := model{
		sess:      sess,
		store:     store,
		cfg:       cfg,
		decks:     decks,
		sfx:       sfx,
		nameInput: ti,
		spin:      sp,
		mode:      models.ModeSilent,
	}
	m.retargetBGM()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.settings != nil {
			return m.updateSettings(msg)
		}
		if msg.String() == "ctrl+s" && m.sess.State() != session.StateLoading {
			m.openSettings()
			return m, nil
		}
		return m.updateKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = int(float64(msg.Width) * 0.72)
		m.viewport.Height = msg.Height - 10
		m.refreshViewport()

	case sceneReadyMsg:
		if msg.err != nil {
			m.err = msg.err
			m.retargetBGM()
			return m, nil
		}
		return m.sceneArrived()

	case spinner.TickMsg:
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case typeTickMsg:
		typing := m.tw.Tick()
		m.refreshViewport()
		if typing {
			return m, typeTick()
		}
		return m, nil
	}

	if m.sess.State() == session.StateSetup && m.settings == nil {
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.sess.State() {
	case session.StateSetup:
		switch {
		case msg.Type == tea.KeyEnter:
			name := m.nameInput.Value()
			return m, m.startGame(name)
		case msg.String() == "ctrl+l":
			snap, err := models.LoadSnapshot(autosaveName)
			if err != nil {
				m.err = err
				return m, nil
			}
			m.sess.Restore(snap)
			return m.sceneArrived()
		}
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd

	case session.StatePlaying:
		return m.updatePlayingKey(msg)

	case session.StateGameOver, session.StateVictory:
		switch msg.String() {
		case "r":
			m.restart()
			return m, nil
		case "q", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) updatePlayingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	scene := m.sess.Scene()
	if scene == nil {
		return m, nil
	}

	// While the narrative is still revealing, any confirm key skips to
	// the full text instead of acting.
	if m.tw.Typing() && (msg.Type == tea.KeyEnter || msg.Type == tea.KeySpace) {
		m.tw.Skip()
		m.refreshViewport()
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(scene.Choices)-1 {
			m.cursor++
		}
	case "tab":
		if m.mode == models.ModeSilent {
			m.mode = models.ModeLoud
		} else {
			m.mode = models.ModeSilent
		}
	case "enter":
		if m.sess.Processing() || len(scene.Choices) == 0 {
			return m, nil
		}
		choice := scene.Choices[m.cursor]
		return m, m.submitChoice(choice, m.mode)
	default:
		// Number keys jump straight to a choice.
		if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= len(scene.Choices) {
			m.cursor = n - 1
		}
	}
	return m, nil
}

func (m *model) openSettings() {
	fields := []settingsField{
		{
			label: "音乐音量",
			get:   func(c *models.UserConfig) string { return fmt.Sprintf("%.2f", c.BGMVolume) },
			set: func(c *models.UserConfig, v string) {
				if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
					c.BGMVolume = f
				}
			},
		},
		{
			label:  "音效开关",
			toggle: true,
			get: func(c *models.UserConfig) string {
				if c.SFXEnabled {
					return "开"
				}
				return "关"
			},
			set: func(c *models.UserConfig, _ string) { c.SFXEnabled = !c.SFXEnabled },
		},
	}
	slotNames := [models.NumAudioSlots]string{"主菜单", "第一幕", "第二幕", "第三幕", "第四幕"}
	for slot := models.AudioSlot(0); slot < models.NumAudioSlots; slot++ {
		slot := slot
		fields = append(fields, settingsField{
			label: "音乐 " + slotNames[slot],
			get:   func(c *models.UserConfig) string { return c.BGMTracks[slot] },
			set:   func(c *models.UserConfig, v string) { c.BGMTracks[slot] = strings.TrimSpace(v) },
		})
	}
	for kind := models.SFXKind(0); kind < models.NumSFXKinds; kind++ {
		kind := kind
		fields = append(fields, settingsField{
			label: "音效 " + kind.String(),
			get:   func(c *models.UserConfig) string { return c.SFXClips[kind] },
			set:   func(c *models.UserConfig, v string) { c.SFXClips[kind] = strings.TrimSpace(v) },
		})
	}
	for slot := models.AudioSlot(0); slot < models.NumAudioSlots; slot++ {
		slot := slot
		fields = append(fields, settingsField{
			label: "背景 " + slotNames[slot],
			get:   func(c *models.UserConfig) string { return c.SceneBackgrounds[slot] },
			set:   func(c *models.UserConfig, v string) { c.SceneBackgrounds[slot] = strings.TrimSpace(v) },
		})
	}

	input := textinput.New()
	input.CharLimit = 256
	input.Width = 48
	m.settings = &settingsPanel{fields: fields, input: input}
}

func (m model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.settings

	if p.editing {
		switch msg.Type {
		case tea.KeyEnter:
			p.fields[p.cursor].set(&m.cfg, p.input.Value())
			p.editing = false
		case tea.KeyEsc:
			p.editing = false
		default:
			var cmd tea.Cmd
			p.input, cmd = p.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.fields)-1 {
			p.cursor++
		}
	case "enter":
		f := p.fields[p.cursor]
		if f.toggle {
			f.set(&m.cfg, "")
			return m, nil
		}
		p.editing = true
		p.input.SetValue(f.get(&m.cfg))
		p.input.Focus()
	case "esc":
		m.closeSettings()
	}
	return m, nil
}

// closeSettings persists the edited config and pushes it to the audio
// side. The whole record is rewritten, matching how it is stored.
func (m *model) closeSettings() {
	m.settings = nil
	m.cfg.Normalize()
	if m.store != nil {
		if err := m.store.Save(m.cfg); err != nil {
			m.err = err
		}
	}
	if m.sfx != nil {
		m.sfx.UpdateConfig(m.cfg)
	}
	m.retargetBGM()
}

// autosaveName is the snapshot slot rewritten after every scene.
const autosaveName = "current"

func (m model) sceneArrived() (tea.Model, tea.Cmd) {
	scene := m.sess.Scene()
	if scene == nil {
		return m, nil
	}
	m.cursor = 0
	m.tw.SetText(scene.Narrative)
	m.refreshViewport()
	m.retargetBGM()
	if m.sess.State() == session.StatePlaying {
		if err := m.sess.Snapshot().Save(autosaveName); err != nil {
			m.err = err
		}
	}
	return m, typeTick()
}

// bgmSlot picks the track slot for a session phase. Loading already
// belongs to the act being entered, so the act track keeps playing while
// the next scene is generated. The false return means silence.
func bgmSlot(st session.State, act models.Act) (models.AudioSlot, bool) {
	switch st {
	case session.StatePlaying, session.StateLoading:
		return models.SlotForAct(act), true
	case session.StateGameOver, session.StateVictory:
		return 0, false
	default:
		return models.SlotMenu, true
	}
}

// retargetBGM points the crossfading deck pair at the track for the
// current phase. Terminal states fade the music out.
func (m *model) retargetBGM() {
	if m.decks == nil {
		return
	}
	slot, audible := bgmSlot(m.sess.State(), m.sess.Stats().CurrentAct)
	if !audible {
		m.decks.SetTarget("", m.cfg.BGMVolume)
		return
	}
	m.decks.SetTarget(m.cfg.TrackFor(slot), m.cfg.BGMVolume)
}

// restart cancels everything tied to the old session: the state machine,
// the typewriter and any in-flight crossfade.
func (m *model) restart() {
	m.sess.Reset()
	m.tw.Reset()
	if m.decks != nil {
		m.decks.Stop()
	}
	m.cursor = 0
	m.mode = models.ModeSilent
	m.nameInput.Reset()
	m.nameInput.Focus()
	m.retargetBGM()
}

func (m *model) refreshViewport() {
	scene := m.sess.Scene()
	if scene == nil || m.viewport.Width == 0 {
		return
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(scene.Title))
	b.WriteString("\n\n")
	b.WriteString(narrativeStyle.Width(m.viewport.Width).Render(m.tw.View()))
	if !m.tw.Typing() && scene.VisualCue != "" {
		b.WriteString("\n\n")
		b.WriteString(cueStyle.Width(m.viewport.Width).Render("画面: " + scene.VisualCue))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if m.settings != nil {
		return m.viewSettings()
	}

	var s string
	switch m.sess.State() {
	case session.StateSetup:
		s = fmt.Sprintf(
			"%s\n\n%s\n\n%s\n\n%s",
			titleStyle.Render("梦境囚笼"),
			"教母在等你。告诉她你的名字:",
			m.nameInput.View(),
			helpStyle.Render("Enter 开始  Ctrl+L 继续上次  Ctrl+S 设置  Ctrl+C 退出"),
		)

	case session.StateLoading:
		s = fmt.Sprintf("\n  %s 教母正在编织你的梦境...\n", m.spin.View())

	case session.StatePlaying:
		main := lipgloss.JoinHorizontal(lipgloss.Top, m.viewport.View(), m.renderSidebar())
		s = lipgloss.JoinVertical(lipgloss.Left,
			main,
			"\n"+m.renderChoices(),
			"\n"+helpStyle.Render("↑/↓ 选择  Enter 确认  Tab 切换行动方式  Ctrl+S 设置  Ctrl+C 退出"),
		)

	case session.StateGameOver:
		s = m.renderEnding(alertStyle.Render("同步中断"), "你的意识沉入了糖浆般的黑暗。")

	case session.StateVictory:
		s = m.renderEnding(victoryStyle.Render("黎明"), "噪音停了。你睁开了真正的眼睛。")
	}

	if m.err != nil {
		s += "\n\n" + alertStyle.Render("错误: "+m.err.Error())
	}
	return "\n" + s + "\n"
}

func (m model) viewSettings() string {
	p := m.settings
	var b strings.Builder
	b.WriteString(titleStyle.Render("设置"))
	b.WriteString("\n\n")
	for i, f := range p.fields {
		line := fmt.Sprintf("%-12s %s", f.label, valueOrDash(f.get(&m.cfg)))
		if i == p.cursor && !p.editing {
			b.WriteString(selectedChoiceStyle.Render(line))
		} else {
			b.WriteString(choiceStyle.Render(line))
		}
		b.WriteString("\n")
		if i == p.cursor && p.editing {
			b.WriteString("  " + p.input.View() + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("↑/↓ 选择  Enter 编辑/切换  Esc 保存并返回"))
	return "\n" + b.String() + "\n"
}

func (m model) renderChoices() string {
	scene := m.sess.Scene()
	if scene == nil {
		return ""
	}
	if m.sess.Processing() {
		return helpStyle.Render("  ...")
	}

	modeLabel := "安静"
	if m.mode == models.ModeLoud {
		modeLabel = "喧闹"
	}
	var b strings.Builder
	b.WriteString(helpStyle.Render("行动方式: " + modeLabel))
	b.WriteString("\n")
	for i, c := range scene.Choices {
		line := fmt.Sprintf("%d. [%s] %s", i+1, choiceTag(c.Type), c.Text)
		if i == m.cursor {
			b.WriteString(selectedChoiceStyle.Render(line))
		} else {
			b.WriteString(choiceStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) renderSidebar() string {
	stats := m.sess.Stats()

	var b strings.Builder
	b.WriteString(titleStyle.Render(stats.CurrentAct.String()))
	b.WriteString(fmt.Sprintf("\n第 %d 层\n\n", stats.Level))
	b.WriteString(fmt.Sprintf("同步率 %s %d/%d\n", bar(stats.SyncRate, stats.MaxSyncRate), stats.SyncRate, stats.MaxSyncRate))
	b.WriteString(fmt.Sprintf("清醒度 %s %d/%d\n", bar(stats.Lucidity, stats.MaxLucidity), stats.Lucidity, stats.MaxLucidity))
	b.WriteString(fmt.Sprintf("噪音值 %s %d/100\n", bar(stats.NoiseLevel, 100), stats.NoiseLevel))
	if stats.CurrentAct == models.ActFour {
		b.WriteString(fmt.Sprintf("教母 %s %d/%d\n", bar(stats.GodmotherHP, stats.MaxGodmotherHP), stats.GodmotherHP, stats.MaxGodmotherHP))
	}

	b.WriteString("\n" + titleStyle.Render("物品") + "\n")
	if len(stats.Inventory) == 0 {
		b.WriteString("(空)\n")
	} else {
		for _, item := range stats.Inventory {
			b.WriteString("- " + item + "\n")
		}
	}

	width := int(float64(m.width) * 0.24)
	return sidebarStyle.Width(width).Height(m.viewport.Height).Render(b.String())
}

func (m model) renderEnding(header, fallback string) string {
	body := fallback
	if scene := m.sess.Scene(); scene != nil && scene.Narrative != "" {
		body = scene.Narrative
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s",
		header,
		narrativeStyle.Width(max(m.width-4, 40)).Render(body),
		helpStyle.Render("r 重新开始  q 退出"),
	)
}

func (m model) startGame(name string) tea.Cmd {
	return func() tea.Msg {
		return sceneReadyMsg{err: m.sess.Start(context.Background(), name)}
	}
}

func (m model) submitChoice(choice models.Choice, mode models.Mode) tea.Cmd {
	return func() tea.Msg {
		return sceneReadyMsg{err: m.sess.SubmitChoice(context.Background(), choice, mode)}
	}
}

func typeTick() tea.Cmd {
	return tea.Tick(typewriter.Interval, func(time.Time) tea.Msg {
		return typeTickMsg{}
	})
}

func bar(cur, max int) string {
	const width = 10
	if max <= 0 {
		max = 1
	}
	filled := cur * width / max
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func choiceTag(t models.ChoiceType) string {
	switch t {
	case models.ChoiceMovement:
		return "移动"
	case models.ChoiceCombat:
		return "战斗"
	case models.ChoiceItem:
		return "物品"
	default:
		return "互动"
	}
}

func valueOrDash(v string) string {
	if v == "" {
		return "—"
	}
	return v
}

// Run starts the terminal UI and blocks until the player quits.
func Run(sess *session.Session, store *config.Store, decks *audio.DeckPair, sfx *audio.Emitter, cfg models.UserConfig) error {
	p := tea.NewProgram(NewModel(sess, store, decks, sfx, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
