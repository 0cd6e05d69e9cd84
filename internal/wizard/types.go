package wizard

import (
	"github.com/charmbracelet/bubbles/textinput"
)

// WizardState represents the current step in the wizard flow
type WizardState int

const (
	StateWelcome WizardState = iota
	StateCheckExisting
	StateDatabaseType
	StateConnectionDetails
	StateTestConnection
	StateAddAnother
	StateSummary
	StateCreating
	StateDone
	StateError
)

// WizardModel holds the state for the Bubble Tea wizard
type WizardModel struct {
	state WizardState

	// Existing config detection
	existingConfigPath string
	existingEnvNames   []string

	// Current environment being configured
	currentEnv   EnvironmentInput
	environments []EnvironmentInput

	// Connection testing
	testingConnection    bool
	connectionTestResult string
	connectionError      error
	retryChoice          int // 0=retry, 1=edit, 2=quit

	addAnotherChoice int // 0=add another, 1=finish and save

	inputs     []textinput.Model
	focusIndex int

	dbTypeIndex int

	// Validation errors keyed by field
	errors map[string]string

	result *InitResult
	err    error

	width  int
	height int
}

// EnvironmentInput holds user input for a single environment
type EnvironmentInput struct {
	Name         string
	Description  string
	DatabaseType string // "mysql", "postgres", "sqlite", "libsql"

	// Server fields (MySQL, PostgreSQL)
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string

	// SQLite fields
	FilePath string

	// libSQL fields
	URL       string
	AuthToken string
}

// InitResult contains the outcome of running the wizard
type InitResult struct {
	ConfigPath        string
	ConfigCreated     bool
	ConfigUpdated     bool
	EnvFiles          []string
	GitignoreUpdated  bool
	EnvExampleCreated bool
	EnvExampleUpdated bool
}

// DatabaseType represents a database option
type DatabaseType struct {
	ID          string
	DisplayName string
	Description string
	Icon        string
	DefaultPort string
}

// Available database types
var DatabaseTypes = []DatabaseType{
	{
		ID:          "mysql",
		DisplayName: "MySQL",
		Description: "procedures, triggers and grants",
		Icon:        "🐬",
		DefaultPort: "3306",
	},
	{
		ID:          "postgres",
		DisplayName: "PostgreSQL",
		Description: "transactional DDL",
		Icon:        "🐘",
		DefaultPort: "5432",
	},
	{
		ID:          "sqlite",
		DisplayName: "SQLite",
		Description: "simple, file-based",
		Icon:        "📁",
	},
	{
		ID:          "libsql",
		DisplayName: "libSQL/Turso",
		Description: "edge database, no CLI fallback",
		Icon:        "🌐",
	},
}

func databaseTypeByID(id string) (DatabaseType, bool) {
	for _, t := range DatabaseTypes {
		if t.ID == id {
			return t, true
		}
	}
	return DatabaseType{}, false
}
