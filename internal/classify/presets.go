package classify

// MySQL server error numbers that mean the object is already there.
const (
	ErDBCreateExists   = 1007
	ErTableExists      = 1050
	ErDupFieldName     = 1060
	ErDupKeyName       = 1061
	ErSPAlreadyExists  = 1304
	ErTrgAlreadyExists = 1359
	ErCannotUser       = 1396
	ErFKDupName        = 1826
	ErDupIndex         = 1831
)

var duplicateMessages = []string{
	"already exists",
	"duplicate column name",
	"duplicate key name",
}

// MySQL is shared by every script run against MySQL or MariaDB.
var MySQL Classifier = Rules{
	Codes: []int{
		ErDBCreateExists,
		ErTableExists,
		ErDupFieldName,
		ErDupKeyName,
		ErSPAlreadyExists,
		ErTrgAlreadyExists,
		ErCannotUser,
		ErFKDupName,
		ErDupIndex,
	},
	Messages: duplicateMessages,
}

// Postgres matches the duplicate_* SQLSTATE class.
var Postgres Classifier = Rules{
	States: []string{
		"42P04", // duplicate_database
		"42P06", // duplicate_schema
		"42P07", // duplicate_table
		"42701", // duplicate_column
		"42710", // duplicate_object
		"42723", // duplicate_function
	},
	Messages: duplicateMessages,
}

// SQLite reports every schema error as SQLITE_ERROR, so only the message
// tells a duplicate apart.
var SQLite Classifier = Rules{Messages: duplicateMessages}

// Default is used when the engine is unknown.
var Default Classifier = Rules{Messages: duplicateMessages}
