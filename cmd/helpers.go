package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"

	"github.com/lockplane/provision/internal/config"
	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/driver"
)

// scriptTarget is a script file plus what provision.toml says about it
type scriptTarget struct {
	Name        string
	Path        string
	Environment string
	Verify      []string
}

// resolveScript finds the script named by --script, or the file (or script
// name) given as an argument.
func resolveScript(cfg *config.Config, arg, scriptName string) (scriptTarget, error) {
	if scriptName == "" && arg != "" {
		if _, ok := cfg.Scripts[arg]; ok {
			scriptName = arg
		}
	}

	if scriptName != "" {
		sc, err := cfg.Script(scriptName)
		if err != nil {
			return scriptTarget{}, err
		}
		return scriptTarget{
			Name:        scriptName,
			Path:        cfg.ScriptPath(sc),
			Environment: sc.Environment,
			Verify:      sc.Verify,
		}, nil
	}

	if arg == "" {
		if names := cfg.ScriptNames(); len(names) > 0 {
			return scriptTarget{}, fmt.Errorf("specify a script file or --script <name> (available: %s)", strings.Join(names, ", "))
		}
		return scriptTarget{}, fmt.Errorf("specify a script file")
	}

	path, err := filepath.Abs(arg)
	if err != nil {
		return scriptTarget{}, err
	}

	// A file that is also a configured script picks up its settings
	for _, name := range cfg.ScriptNames() {
		sc := cfg.Scripts[name]
		if filepath.Clean(cfg.ScriptPath(sc)) == path {
			return scriptTarget{Name: name, Path: path, Environment: sc.Environment, Verify: sc.Verify}, nil
		}
	}

	return scriptTarget{Name: filepath.Base(arg), Path: path}, nil
}

// environmentFor picks --environment over the script's own environment
func environmentFor(target scriptTarget) string {
	if environment != "" {
		return environment
	}
	return target.Environment
}

// openTarget resolves the environment and connects to it
func openTarget(ctx context.Context, cfg *config.Config, envName, dbOverride string, opts database.Options) (*config.ResolvedEnvironment, driver.Driver, *sql.DB, *database.SQLConn, error) {
	env, err := config.ResolveEnvironment(cfg, envName, dbOverride)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	d, err := driver.ForConnString(env.DatabaseURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	log.WithFields(log.Fields{
		"environment": env.Name,
		"driver":      d.Name(),
		"source":      env.Source,
	}).Debug("connecting")

	db, conn, err := driver.Connect(ctx, d, env.DatabaseURL, opts)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to connect to environment %q: %w", env.Name, err)
	}
	return env, d, db, conn, nil
}

func readScript(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}

// printConfigNotFound explains how to create provision.toml
func printConfigNotFound() {
	fmt.Printf(`%s not found. Run "provision init", or create one that looks like:

[environments.local]
description = "MySQL on localhost"

[scripts.schema]
file = "schema.sql"
`, config.FileName)
}

func firstLine(sql string, max int) string {
	line := strings.TrimSpace(database.StripLeadingComments(sql))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i]) + " ..."
	}
	if len(line) > max {
		line = line[:max] + "..."
	}
	return line
}
