// Package config resolves FlashQ's default on-disk locations: where a
// file backend's data directory lives, and where the ACL model/policy
// files auth.New expects, unless the caller overrides them.
package config

import (
	"log"
	"os"
	"path/filepath"
)

var (
	// DefaultDataDir is where the file backend stores its segments and
	// consumer group snapshots when no data_dir is configured explicitly.
	DefaultDataDir = configFile("data")
	ACLModelFile   = configFile("model.conf")
	ACLPolicyFile  = configFile("policy.csv")
)

// configFile resolves filename under $CONFIG_DIR, falling back to
// ~/.flashq.
func configFile(filename string) string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, filename)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalln("failed to get user home directory:", err)
	}
	return filepath.Join(homeDir, ".flashq", filename)
}
