package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pbdsim/internal/store"
)

const (
	width     = 80
	height    = 24
	maxSpeed  = 16
	gifFile   = "replay.gif"
	tickEvery = time.Second / 60
)

var (
	statsStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(45)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(2)
)

type TickMsg time.Time

// Model plays back the frames of one group's trace.
type Model struct {
	name          string
	frames        []store.Frame
	angles        [][]float64
	head          int
	speed         int
	running       bool
	width, height int
	canvas        *Canvas
	theme         Theme
	showHelp      bool
	recording     bool
	gifFrames     []*image.Paletted
	status        string
	ticks         int
}

func NewModel(name string, frames []store.Frame) Model {
	return Model{
		name:    name,
		frames:  frames,
		angles:  BeadAngles(frames),
		speed:   1,
		running: len(frames) > 1,
		width:   width,
		height:  height,
		canvas:  NewCanvas(width, height),
		theme:   ThemeCyberpunk,
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickEvery, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.running = !m.running
			if m.running && m.head >= len(m.frames)-1 {
				m.head = 0
			}
		case "r", "home":
			m.head = 0
		case "end":
			m.head = max(len(m.frames)-1, 0)
		case "[", "left", "h":
			m.running = false
			m.scrub(-1)
		case "]", "right", "l":
			m.running = false
			m.scrub(1)
		case "+", "=":
			m.speed = min(m.speed*2, maxSpeed)
		case "-", "_":
			m.speed = max(m.speed/2, 1)
		case "t":
			m.theme = m.theme.next()
		case "g":
			if m.recording {
				m.status = m.saveGIF()
				m.recording = false
				m.gifFrames = nil
			} else {
				m.recording = true
				m.gifFrames = make([]*image.Paletted, 0)
			}
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		m.ticks++
		if m.running {
			m.scrub(m.speed)
			if m.head >= len(m.frames)-1 {
				m.running = false
			}
		}
		m.draw()
		if m.recording {
			m.captureFrame()
		}
		return m, tick()
	}
	return m, nil
}

// scrub moves the play head by n frames, clamped to the trace.
func (m *Model) scrub(n int) {
	m.head += n
	if m.head >= len(m.frames) {
		m.head = len(m.frames) - 1
	}
	if m.head < 0 {
		m.head = 0
	}
}

// draw renders the current frame: the wire, then every bead outline with its
// center marked.
func (m *Model) draw() {
	m.canvas.Clear()
	if len(m.frames) == 0 {
		return
	}
	f := m.frames[m.head]
	var maxR float64
	for _, b := range f.Beads {
		maxR = max(maxR, float64(b.R))
	}
	vp := Fit(m.canvas, float64(f.Wire.X), float64(f.Wire.Y), float64(f.Wire.R)+maxR)

	wx, wy := vp.Point(float64(f.Wire.X), float64(f.Wire.Y))
	m.canvas.DrawCircle(wx, wy, vp.Length(float64(f.Wire.R)))
	m.canvas.Set(wx, wy)
	for _, b := range f.Beads {
		bx, by := vp.Point(float64(b.X), float64(b.Y))
		m.canvas.DrawCircle(bx, by, vp.Length(float64(b.R)))
		m.canvas.FillCircle(bx, by, 1)
	}
}

func (m Model) View() string {
	m.draw()
	th := m.theme
	canvasView := th.canvas().Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(th.header().Render(strings.ToUpper(m.name)) + "\n")

	status := StatusPaused.Render("PAUSED")
	if m.running {
		status = StatusRunning.Render(AnimatedSpinner(m.ticks) + " PLAYING")
	}
	if m.recording {
		status += " " + StatusRecording.Render("● REC")
	}
	s.WriteString(status + "\n\n")

	if len(m.frames) == 0 {
		s.WriteString(th.value().Render("(empty trace)") + "\n")
	} else {
		f := m.frames[m.head]
		s.WriteString(th.label().Render("Frame") + th.value().Render(fmt.Sprintf("%d (%d/%d)", f.Index, m.head+1, len(m.frames))) + "\n")
		s.WriteString(th.label().Render("Beads") + th.value().Render(fmt.Sprintf("%d", len(f.Beads))) + "\n")
		s.WriteString(th.label().Render("Wire") + th.value().Render(fmt.Sprintf("(%.3f, %.3f) r=%.3f", f.Wire.X, f.Wire.Y, f.Wire.R)) + "\n")
		s.WriteString(th.label().Render("Speed") + th.value().Render(fmt.Sprintf("%dx", m.speed)) + "\n")
		if len(m.angles) > 0 && m.head > 0 {
			hist := m.angles[0][:m.head+1]
			chart := asciigraph.Plot(hist, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Bead 0 angle"))
			s.WriteString(graphStyle.Render(chart) + "\n")
		}
	}
	if m.status != "" {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(th.Warning).Render(m.status) + "\n")
	}
	s.WriteString(helpStyle.Render("\n─────────────────────\nSP:Play ←→:Step R:Restart Q:Quit\nT:Theme G:Record +-:Speed ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return KeyHint.Render(`
  Space      play / pause
  ← → [ ]    step one frame
  R / Home   restart, End jumps to the last frame
  + -        playback speed
  T          cycle themes
  G          toggle GIF recording (`+gifFile+`)
  Q          quit
`) + "\n" + mainView
	}
	return mainView
}

func (m *Model) captureFrame() {
	charW, charH := 8, 16
	imgW, imgH := m.width*charW, m.height*charH
	img := image.NewPaletted(image.Rect(0, 0, imgW, imgH), color.Palette{color.Black, color.White})
	dotW, dotH := charW/2, charH/4
	for row := 0; row < m.height; row++ {
		for col := 0; col < m.width; col++ {
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if !m.canvas.IsSet(col*2+dx, row*4+dy) {
						continue
					}
					baseX, baseY := col*charW+dx*dotW, row*charH+dy*dotH
					for py := 0; py < dotH; py++ {
						for px := 0; px < dotW; px++ {
							img.SetColorIndex(baseX+px, baseY+py, 1)
						}
					}
				}
			}
		}
	}
	m.gifFrames = append(m.gifFrames, img)
}

// saveGIF writes the recorded frames and returns a status line.
func (m *Model) saveGIF() string {
	if len(m.gifFrames) == 0 {
		return "nothing recorded"
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range m.gifFrames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 2)
	}
	f, err := os.Create(gifFile)
	if err != nil {
		return "gif: " + err.Error()
	}
	defer f.Close()
	if err := gif.EncodeAll(f, &anim); err != nil {
		return "gif: " + err.Error()
	}
	return fmt.Sprintf("saved %d frames to %s", len(m.gifFrames), gifFile)
}

// Replay runs the interactive viewer in the named theme until the user quits.
func Replay(name string, frames []store.Frame, theme string) error {
	if !slices.Contains(ThemeNames(), theme) {
		return fmt.Errorf("unknown theme %q (available: %s)", theme, strings.Join(ThemeNames(), ", "))
	}
	m := NewModel(name, frames)
	m.theme = GetTheme(theme)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
