package cmd

import (
	"flag"
	"testing"
)

type testConfig struct {
	DBPath string `env:"CMD_TEST_DB_PATH" envDefault:"data/game.db"`
	Count  int    `env:"CMD_TEST_COUNT" envDefault:"5"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_DB_PATH", "env/game.db")
	t.Setenv("CMD_TEST_COUNT", "7")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "db path")
	fs.IntVar(&cfg.Count, "count", cfg.Count, "count")

	if err := ParseArgs(fs, []string{"-db", "flag/game.db"}); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if cfg.DBPath != "flag/game.db" {
		t.Fatalf("db path = %q, want flag override", cfg.DBPath)
	}
	if cfg.Count != 7 {
		t.Fatalf("count = %d, want env default 7", cfg.Count)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected error for nil config target")
	}
}

func TestParseArgsRejectsNilFlagSet(t *testing.T) {
	if err := ParseArgs(nil, nil); err == nil {
		t.Fatal("expected error for nil flag set")
	}
}
