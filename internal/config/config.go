package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port      string
	DBDSN     string
	LogFile   string
	OpTimeout time.Duration
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "marketqa.db"
	} // sqlite file in project root
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "./marketqa.log"
	}
	// Bound every transition's store round trip.
	opTimeout := 5 * time.Second
	if v := os.Getenv("OP_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			opTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	cfg := Config{Port: port, DBDSN: dsn, LogFile: logFile, OpTimeout: opTimeout}
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s OP_TIMEOUT=%s", cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.OpTimeout)
	return cfg
}
