package wizard

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lockplane/provision/internal/config"
)

const wizardTitle = "Provision Init Wizard"

// New creates a new wizard model
func New() WizardModel {
	return WizardModel{
		state:        StateWelcome,
		environments: []EnvironmentInput{},
		errors:       make(map[string]string),
		inputs:       []textinput.Model{},
		dbTypeIndex:  0,
	}
}

// Init initializes the wizard (Bubble Tea Init)
func (m WizardModel) Init() tea.Cmd {
	return checkForExistingConfig
}

// Update handles state transitions (Bubble Tea Update)
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			// q is a literal character while typing connection details
			if m.state == StateConnectionDetails {
				return m.handleTextInput(msg)
			}
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			return m.handleUp()

		case "down":
			return m.handleDown()

		case "tab":
			return m.handleTab()

		default:
			return m.handleTextInput(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case connectionTestResultMsg:
		m.testingConnection = false
		if msg.err != nil {
			m.connectionError = msg.err
			m.connectionTestResult = "failed"
		} else {
			m.connectionTestResult = "success"
			m.connectionError = nil
		}
		return m, nil

	case fileCreationResultMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = StateError
			return m, nil
		}
		m.result = msg.result
		m.state = StateDone
		return m, nil

	case existingConfigMsg:
		if msg.path != "" {
			m.existingConfigPath = msg.path
			m.existingEnvNames = msg.envNames
			m.state = StateCheckExisting
		} else {
			m.state = StateWelcome
		}
		return m, nil
	}

	return m, nil
}

// View renders the wizard UI (Bubble Tea View)
func (m WizardModel) View() string {
	switch m.state {
	case StateWelcome:
		return m.renderWelcome()
	case StateCheckExisting:
		return m.renderCheckExisting()
	case StateDatabaseType:
		return m.renderDatabaseType()
	case StateConnectionDetails:
		return m.renderConnectionDetails()
	case StateTestConnection:
		return m.renderTestConnection()
	case StateAddAnother:
		return m.renderAddAnother()
	case StateSummary:
		return m.renderSummary()
	case StateCreating:
		return m.renderCreating()
	case StateDone:
		return m.renderDone()
	case StateError:
		return m.renderError()
	default:
		return "Unknown state"
	}
}

// State transition handlers

func (m WizardModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateWelcome, StateCheckExisting:
		m.state = StateDatabaseType
		return m, nil

	case StateDatabaseType:
		dbType := DatabaseTypes[m.dbTypeIndex]
		m.currentEnv = EnvironmentInput{DatabaseType: dbType.ID}
		m.state = StateConnectionDetails
		m.initializeInputs()
		return m, nil

	case StateConnectionDetails:
		if err := m.collectInputValues(); err != nil {
			return m, nil
		}
		m.state = StateTestConnection
		m.testingConnection = true
		m.connectionTestResult = ""
		return m, m.testConnection()

	case StateTestConnection:
		switch m.connectionTestResult {
		case "success":
			m.state = StateAddAnother
			m.environments = append(m.environments, m.currentEnv)
			m.currentEnv = EnvironmentInput{}
			m.addAnotherChoice = 0
			return m, nil
		case "failed":
			switch m.retryChoice {
			case 0: // Retry
				m.connectionTestResult = ""
				m.connectionError = nil
				m.testingConnection = true
				return m, m.testConnection()
			case 1: // Edit
				m.state = StateConnectionDetails
				m.connectionTestResult = ""
				m.connectionError = nil
				m.retryChoice = 0
				return m, nil
			case 2: // Quit
				return m, tea.Quit
			}
		}
		return m, nil

	case StateAddAnother:
		if m.addAnotherChoice == 1 {
			m.state = StateDatabaseType
			m.dbTypeIndex = 0
			return m, nil
		}
		m.state = StateSummary
		return m, nil

	case StateSummary:
		m.state = StateCreating
		return m, m.createFiles()

	case StateDone, StateError:
		return m, tea.Quit
	}

	return m, nil
}

func (m WizardModel) handleUp() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateDatabaseType:
		if m.dbTypeIndex > 0 {
			m.dbTypeIndex--
		}
	case StateConnectionDetails:
		if m.focusIndex > 0 {
			m.focusIndex--
			m.updateInputFocus()
		}
	case StateTestConnection:
		if m.connectionTestResult == "failed" && m.retryChoice > 0 {
			m.retryChoice--
		}
	case StateAddAnother:
		m.addAnotherChoice = 0
	}
	return m, nil
}

func (m WizardModel) handleDown() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateDatabaseType:
		if m.dbTypeIndex < len(DatabaseTypes)-1 {
			m.dbTypeIndex++
		}
	case StateConnectionDetails:
		if m.focusIndex < len(m.inputs)-1 {
			m.focusIndex++
			m.updateInputFocus()
		}
	case StateTestConnection:
		if m.connectionTestResult == "failed" && m.retryChoice < 2 {
			m.retryChoice++
		}
	case StateAddAnother:
		m.addAnotherChoice = 1
	}
	return m, nil
}

func (m WizardModel) handleTab() (tea.Model, tea.Cmd) {
	if m.state == StateConnectionDetails && len(m.inputs) > 0 {
		m.focusIndex = (m.focusIndex + 1) % len(m.inputs)
		m.updateInputFocus()
	}
	return m, nil
}

func (m WizardModel) handleTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state == StateConnectionDetails && len(m.inputs) > 0 {
		var cmd tea.Cmd
		m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
		return m, cmd
	}
	return m, nil
}

// Input management

func (m *WizardModel) initializeInputs() {
	m.inputs = []textinput.Model{}
	m.focusIndex = 0
	m.errors = make(map[string]string)

	envName := "local"
	if len(m.environments) > 0 {
		envName = ""
	}

	switch m.currentEnv.DatabaseType {
	case "mysql", "postgres":
		dbType, _ := databaseTypeByID(m.currentEnv.DatabaseType)
		m.inputs = append(m.inputs,
			m.makeInput("Environment name", envName, false),
			m.makeInput("Host", "127.0.0.1", false),
			m.makeInput("Port", dbType.DefaultPort, false),
			m.makeInput("Database", "app", false),
			m.makeInput("User", "root", false),
			m.makeInput("Password", "", true),
		)
	case "sqlite":
		m.inputs = append(m.inputs,
			m.makeInput("Environment name", envName, false),
			m.makeInput("Database file path", "provision.db", false),
		)
	case "libsql":
		m.inputs = append(m.inputs,
			m.makeInput("Environment name", envName, false),
			m.makeInput("Database URL", "libsql://[name]-[org].turso.io", false),
			m.makeInput("Auth token", "", true),
		)
	}

	if len(m.inputs) > 0 {
		m.inputs[0].Focus()
	}
}

func (m *WizardModel) makeInput(placeholder, value string, isPassword bool) textinput.Model {
	input := textinput.New()
	input.Placeholder = placeholder
	input.SetValue(value)
	if isPassword {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '*'
	}
	return input
}

func (m *WizardModel) updateInputFocus() {
	for i := range m.inputs {
		if i == m.focusIndex {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

func (m *WizardModel) collectInputValues() error {
	m.errors = make(map[string]string)

	switch m.currentEnv.DatabaseType {
	case "mysql", "postgres":
		if len(m.inputs) < 6 {
			return fmt.Errorf("not enough inputs")
		}
		m.currentEnv.Name = strings.TrimSpace(m.inputs[0].Value())
		m.currentEnv.Host = strings.TrimSpace(m.inputs[1].Value())
		m.currentEnv.Port = strings.TrimSpace(m.inputs[2].Value())
		m.currentEnv.Database = strings.TrimSpace(m.inputs[3].Value())
		m.currentEnv.User = strings.TrimSpace(m.inputs[4].Value())
		m.currentEnv.Password = m.inputs[5].Value()

		if err := ValidatePort(m.currentEnv.Port); err != nil {
			m.errors["port"] = err.Error()
		}
		if m.currentEnv.Database == "" {
			m.errors["database"] = "database cannot be empty"
		}

	case "sqlite":
		if len(m.inputs) < 2 {
			return fmt.Errorf("not enough inputs")
		}
		m.currentEnv.Name = strings.TrimSpace(m.inputs[0].Value())
		m.currentEnv.FilePath = strings.TrimSpace(m.inputs[1].Value())

	case "libsql":
		if len(m.inputs) < 3 {
			return fmt.Errorf("not enough inputs")
		}
		m.currentEnv.Name = strings.TrimSpace(m.inputs[0].Value())
		m.currentEnv.URL = strings.TrimSpace(m.inputs[1].Value())
		m.currentEnv.AuthToken = strings.TrimSpace(m.inputs[2].Value())

		if err := ValidateConnectionString(m.currentEnv.URL, "libsql"); err != nil {
			m.errors["url"] = err.Error()
		}
	}

	if err := ValidateEnvironmentName(m.currentEnv.Name); err != nil {
		m.errors["name"] = err.Error()
	}
	for _, env := range m.environments {
		if env.Name == m.currentEnv.Name {
			m.errors["name"] = fmt.Sprintf("environment %q was already added", env.Name)
		}
	}

	if len(m.errors) > 0 {
		return fmt.Errorf("invalid connection details")
	}
	return nil
}

// Message types for async operations

type connectionTestResultMsg struct {
	err error
}

func (m WizardModel) testConnection() tea.Cmd {
	connStr := ConnectionString(m.currentEnv)
	return func() tea.Msg {
		return connectionTestResultMsg{err: TestConnection(context.Background(), connStr)}
	}
}

type fileCreationResultMsg struct {
	result *InitResult
	err    error
}

func (m WizardModel) createFiles() tea.Cmd {
	environments := m.environments
	return func() tea.Msg {
		result, err := GenerateFiles(environments)
		return fileCreationResultMsg{result: result, err: err}
	}
}

type existingConfigMsg struct {
	path     string
	envNames []string
}

func checkForExistingConfig() tea.Msg {
	envNames, err := getEnvironmentNames(config.FileName)
	if err == nil && len(envNames) > 0 {
		return existingConfigMsg{path: config.FileName, envNames: envNames}
	}
	return existingConfigMsg{}
}

func getEnvironmentNames(configPath string) ([]string, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}

	envNames := make([]string, 0, len(cfg.Environments))
	for name := range cfg.Environments {
		envNames = append(envNames, name)
	}
	sort.Strings(envNames)
	return envNames, nil
}

// View renderers

func (m WizardModel) renderWelcome() string {
	var b strings.Builder

	b.WriteString(renderHeader(wizardTitle))
	b.WriteString("\n\n")
	b.WriteString("Welcome! Let's set up provision for your project.\n\n")
	b.WriteString(renderInfo("This wizard will help you:\n" +
		"  • Configure database connections\n" +
		"  • Test each connection before saving it\n" +
		"  • Create environment-specific .env files"))
	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("Press Enter to continue, q to quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderCheckExisting() string {
	var b strings.Builder

	b.WriteString(renderHeader(wizardTitle))
	b.WriteString("\n\n")
	b.WriteString(renderSuccess("Found existing configuration!"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Config: %s\n", m.existingConfigPath))
	b.WriteString(fmt.Sprintf("Environments: %s\n", strings.Join(m.existingEnvNames, ", ")))
	b.WriteString("\n\n")
	b.WriteString(renderInfo("New environments are merged into the existing file.\n" +
		"Scripts and other environments are kept."))
	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("Press Enter to continue, q to quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderDatabaseType() string {
	var b strings.Builder

	b.WriteString(renderHeader(wizardTitle))
	b.WriteString("\n\n")
	b.WriteString(renderSectionHeader("Database Type Selection"))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("What database are you using?"))
	b.WriteString("\n\n")

	for i, dbType := range DatabaseTypes {
		line := fmt.Sprintf("%d. %s %s (%s)",
			i+1, dbType.Icon, dbType.DisplayName, dbType.Description)
		b.WriteString(renderOption(i == m.dbTypeIndex, line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderInfo("Scripts are applied natively first and fall back to\nstatement splitting or the engine's command-line client."))
	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("↑/↓: navigate  Enter: select  q: quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderConnectionDetails() string {
	var b strings.Builder

	b.WriteString(renderHeader(wizardTitle))
	b.WriteString("\n\n")
	b.WriteString(renderSectionHeader("Connection Details"))
	b.WriteString("\n\n")

	if dbType, ok := databaseTypeByID(m.currentEnv.DatabaseType); ok {
		b.WriteString(fmt.Sprintf("Database: %s %s\n\n", dbType.Icon, dbType.DisplayName))
	}

	for i, input := range m.inputs {
		label := input.Placeholder
		if i == m.focusIndex {
			b.WriteString(selectedStyle.Render(iconArrow + " " + label + ":"))
		} else {
			b.WriteString(labelStyle.Render("  " + label + ":"))
		}
		b.WriteString("\n  ")
		b.WriteString(input.View())
		b.WriteString("\n\n")
	}

	if len(m.errors) > 0 {
		keys := make([]string, 0, len(m.errors))
		for k := range m.errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(renderError(m.errors[k]))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	switch m.currentEnv.DatabaseType {
	case "mysql":
		b.WriteString(renderInfo("Scripts that fail natively can fall back to the\nmysql client, so keep it on your PATH."))
	case "sqlite":
		b.WriteString(renderInfo("The database file is created if it does not exist."))
	case "libsql":
		b.WriteString(renderInfo("libSQL/Turso has no command-line fallback.\nFailed statements are reported directly."))
	}

	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("↑/↓ or Tab: navigate  Enter: test connection  ctrl+c: quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderTestConnection() string {
	var b strings.Builder

	b.WriteString(renderHeader(wizardTitle))
	b.WriteString("\n\n")
	b.WriteString(renderSectionHeader("Testing Connection"))
	b.WriteString("\n\n")

	switch {
	case m.testingConnection:
		b.WriteString(infoStyle.Render(iconSpinner + " Testing connection..."))
	case m.connectionTestResult == "success":
		b.WriteString(renderSuccess("Connection successful!"))
		b.WriteString("\n\n")
		b.WriteString("Connected to: " + m.currentEnv.Name)
	case m.connectionTestResult == "failed":
		b.WriteString(renderError("Connection failed"))
		b.WriteString("\n\n")
		if m.connectionError != nil {
			b.WriteString(errorStyle.Render("Error: " + m.connectionError.Error()))
		}
		b.WriteString("\n\n")
		b.WriteString("What would you like to do?\n\n")

		b.WriteString(renderOption(m.retryChoice == 0, "Retry connection"))
		b.WriteString("\n")
		b.WriteString(renderOption(m.retryChoice == 1, "Edit connection details"))
		b.WriteString("\n")
		b.WriteString(renderOption(m.retryChoice == 2, "Quit wizard"))
		b.WriteString("\n")
	}

	b.WriteString("\n\n")
	if m.connectionTestResult == "failed" {
		b.WriteString(renderStatusBar("↑/↓: navigate  Enter: select  q: quit"))
	} else {
		b.WriteString(renderStatusBar("Press Enter to continue"))
	}

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderAddAnother() string {
	var b strings.Builder

	b.WriteString(renderHeader(wizardTitle))
	b.WriteString("\n\n")
	b.WriteString(renderSectionHeader("Add Another Environment?"))
	b.WriteString("\n\n")
	if len(m.environments) > 0 {
		b.WriteString(fmt.Sprintf("%s Added environment: %s\n\n", iconCheck, m.environments[len(m.environments)-1].Name))
	}
	b.WriteString(renderOption(m.addAnotherChoice == 0, "Finish and save"))
	b.WriteString("\n")
	b.WriteString(renderOption(m.addAnotherChoice == 1, "Add another environment (e.g. staging, production)"))
	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("↑/↓: navigate  Enter: select  q: quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderSummary() string {
	var b strings.Builder

	b.WriteString(renderHeader(wizardTitle))
	b.WriteString("\n\n")
	b.WriteString(renderSectionHeader("Summary"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Ready to create configuration for %d environment(s):\n\n", len(m.environments)))

	for _, env := range m.environments {
		b.WriteString(fmt.Sprintf("  • %s (%s)\n", env.Name, env.DatabaseType))
	}

	b.WriteString("\n")
	b.WriteString("This will create:\n")
	b.WriteString(fmt.Sprintf("  • %s\n", config.FileName))
	for _, env := range m.environments {
		b.WriteString(fmt.Sprintf("  • .env.%s %s\n", env.Name, iconSecurity))
	}
	b.WriteString("  • Update .gitignore\n")

	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("Press Enter to create files, q to quit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderCreating() string {
	var b strings.Builder

	b.WriteString(renderHeader(wizardTitle))
	b.WriteString("\n\n")
	b.WriteString(infoStyle.Render(iconSpinner + " Writing configuration..."))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderDone() string {
	var b strings.Builder

	b.WriteString(renderHeader(wizardTitle))
	b.WriteString("\n\n")
	b.WriteString(renderSuccess("Setup complete!"))
	b.WriteString("\n\n")

	if m.result != nil {
		b.WriteString("Created:\n")
		if m.result.ConfigCreated || m.result.ConfigUpdated {
			b.WriteString(fmt.Sprintf("  %s %s\n", iconCheck, m.result.ConfigPath))
		}
		for _, envFile := range m.result.EnvFiles {
			b.WriteString(fmt.Sprintf("  %s %s\n", iconCheck, envFile))
		}
		if m.result.EnvExampleCreated || m.result.EnvExampleUpdated {
			b.WriteString(fmt.Sprintf("  %s .env.example\n", iconCheck))
		}
		if m.result.GitignoreUpdated {
			b.WriteString(fmt.Sprintf("  %s .gitignore updated\n", iconCheck))
		}
	}

	b.WriteString("\n")
	b.WriteString("Next steps:\n")
	b.WriteString("  1. Add your scripts under [scripts] in " + config.FileName + "\n")
	b.WriteString("  2. Preview one with: provision apply --dry-run <file>\n")
	b.WriteString("  3. Apply it with:    provision apply <file>\n")

	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("Press Enter to exit"))

	return borderStyle.Render(b.String())
}

func (m WizardModel) renderError() string {
	var b strings.Builder

	b.WriteString(renderHeader(wizardTitle))
	b.WriteString("\n\n")
	b.WriteString(renderError("An error occurred"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
	}

	b.WriteString("\n\n")
	b.WriteString(renderStatusBar("Press Enter to exit"))

	return borderStyle.Render(b.String())
}

// Run starts the wizard
func Run() error {
	p := tea.NewProgram(New())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(WizardModel); ok && m.state == StateError && m.err != nil {
		return m.err
	}
	return nil
}
