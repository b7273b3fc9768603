package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"strconv"
)

type Config struct {
	AppName       string `json:"app_name"`
	ListenIP      string `json:"listen_ip"`
	ListenPort    int    `json:"listen_port"`
	SessionKey    string `json:"session_key"`
	DBPath        string `json:"db_path"`
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
	Captcha       bool   `json:"captcha"`
}

// Load reads the JSON config at path, falling back to defaults when the
// file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		AppName:       "Spendex",
		ListenIP:      "127.0.0.1",
		ListenPort:    8080,
		DBPath:        "./spendex.db",
		AdminUsername: "admin",
		AdminPassword: "admin123",
	}

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Environment overrides
	if v := os.Getenv("SPENDEX_SESSION_KEY"); v != "" {
		cfg.SessionKey = v
	}
	if v := os.Getenv("SPENDEX_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SPENDEX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.ListenPort = port
		}
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}

	// If no key is provided or it's the placeholder, generate a secure random one
	if cfg.SessionKey == "" || cfg.SessionKey == "CHANGE_ME_IN_PRODUCTION" {
		log.Println("WARNING: No session key configured. Generating a random key. Sessions will be invalidated on restart.")
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err != nil {
			return nil, err
		}
		cfg.SessionKey = hex.EncodeToString(randomKey)
	}

	return cfg, nil
}
