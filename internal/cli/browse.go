package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/roverlab/traverse/pkg/store"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// browseRecords runs the interactive record browser and prints the selected
// record afterwards.
func browseRecords(recs []*store.PathRecord) error {
	model := newRecordListModel(recs)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("browse records: %w", err)
	}

	m, ok := final.(recordListModel)
	if !ok || m.selected == nil {
		return nil
	}
	rec := m.selected
	printKeyValue("ID", rec.ID)
	printKeyValue("Cost", formatCost(rec))
	printKeyValue("Steps", strconv.Itoa(len(rec.Coords)-1))
	printKeyValue("Route", fmt.Sprintf("%v %s %v", rec.Coords[0], iconArrow, rec.Coords[len(rec.Coords)-1]))
	if rec.Seq > 0 {
		printNextStep("Export it", "traverse records export "+rec.ID)
	}
	return nil
}

// recordListModel is the bubbletea model for interactive record selection.
type recordListModel struct {
	records  []*store.PathRecord
	cursor   int
	selected *store.PathRecord
	height   int
	offset   int
}

func newRecordListModel(recs []*store.PathRecord) recordListModel {
	return recordListModel{records: recs, height: 15}
}

func (m recordListModel) Init() tea.Cmd {
	return nil
}

func (m recordListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.records)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.height {
					m.offset = m.cursor - m.height + 1
				}
			}
		case "enter":
			m.selected = m.records[m.cursor]
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height - 6
		if m.height < 5 {
			m.height = 5
		}
	}
	return m, nil
}

func (m recordListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Path Record"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := m.offset + m.height
	if end > len(m.records) {
		end = len(m.records)
	}

	rows := [][]string{}
	for i := m.offset; i < end; i++ {
		r := m.records[i]

		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			strconv.FormatInt(r.Seq, 10),
			shortID(r.ID),
			formatCost(r),
			strconv.Itoa(len(r.Coords) - 1),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Seq", "ID", "Cost", "Steps").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.offset+row == m.cursor {
				return lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.cursor+1, len(m.records))))

	return b.String()
}
