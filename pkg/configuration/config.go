package configuration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LocalConfigFile overrides values of the main configuration when present
const LocalConfigFile = "settings.local.cfg"

// Config manages the application configuration
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// sectionOrder is the order sections are written in
var sectionOrder = []string{"Server", "Interpreter", "Storage", "JWT", "TLS", "Network", "Debug"}

// Initialize initializes the global configuration
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = loadConfig(configPath)
		if err != nil {
			return
		}
		// settings.local.cfg next to the main file wins over it
		localConfigPath := filepath.Join(filepath.Dir(configPath), LocalConfigFile)
		if _, statErr := os.Stat(localConfigPath); statErr == nil {
			// Silent error - config loading continues with base config
			_ = globalConfig.loadLocalConfig(localConfigPath)
		}
		applyEnvOverrides(os.LookupEnv)
	})
	return err
}

// EnvPrefix starts the environment variables that override file settings,
// as in CHAYAKADA_STORAGE_DB_PATH for [Storage] db_path.
const EnvPrefix = "CHAYAKADA_"

// applyEnvOverrides replaces every known key that has a matching
// environment variable
func applyEnvOverrides(lookup func(string) (string, bool)) {
	for _, section := range sectionNames() {
		for key := range GetSection(section) {
			if value, ok := lookup(envName(section, key)); ok {
				SetString(section, key, value)
			}
		}
	}
}

func envName(section, key string) string {
	return EnvPrefix + strings.ToUpper(section) + "_" + strings.ToUpper(key)
}

func sectionNames() []string {
	if globalConfig == nil {
		return nil
	}
	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	names := make([]string, 0, len(globalConfig.settings))
	for name := range globalConfig.settings {
		names = append(names, name)
	}
	return names
}

// loadConfig loads the configuration from a file, creating it with defaults
// if it does not exist yet
func loadConfig(filePath string) (*Config, error) {
	config := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		config.createDefaultConfig()
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := config.parse(file); err != nil {
		return nil, err
	}
	return config, nil
}

// loadLocalConfig loads local overrides
func (c *Config) loadLocalConfig(filePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return c.parse(file)
}

// parse reads [Section] headers and key = value pairs into the settings.
// Later values overwrite earlier ones.
func (c *Config) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			if c.settings[currentSection] == nil {
				c.settings[currentSection] = make(map[string]string)
			}
			continue
		}

		if currentSection == "" {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok {
			c.settings[currentSection][strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return scanner.Err()
}

// createDefaultConfig fills in the defaults for every section in use
func (c *Config) createDefaultConfig() {
	c.settings["Server"] = map[string]string{
		"http_port":       "8080",
		"allowed_origins": "*",
	}

	c.settings["Interpreter"] = map[string]string{
		"pause_duration":   "1s",
		"max_source_kb":    "64",
		"normalize_source": "true",
	}

	c.settings["Storage"] = map[string]string{
		"db_path":               "chayakada.db",
		"max_files_per_session": "200",
	}

	c.settings["JWT"] = map[string]string{
		"secret_key":             "ENVIRONMENT_VARIABLE_NOT_SET_FALLBACK",
		"token_expiration_hours": "24",
	}

	c.settings["TLS"] = map[string]string{
		"enable_tls":           "false",
		"enable_letsencrypt":   "false",
		"generate_self_signed": "false",
		"domain":               "",
		"letsencrypt_email":    "",
		"cert_cache_dir":       "./certs",
		"cert_file":            "./certs/server.crt",
		"key_file":             "./certs/server.key",
		"https_port":           "8443",
		"force_https_redirect": "false",
	}

	c.settings["Network"] = map[string]string{
		"pong_timeout":        "90s",
		"write_wait_timeout":  "10s",
		"max_message_size_kb": "128",
		"max_channel_buffer":  "64",
		"max_clients":         "100",
		"max_runs_per_minute": "120",
	}

	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "true",
		"log_level":            "INFO",
		"log_file":             "chayakada.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		"log_interpreter":      "false",
		"log_storage":          "true",
		"log_api":              "true",
		"log_websocket":        "false",
		"log_auth":             "true",
		"log_security":         "true",
		"log_config":           "true",
		"log_general":          "true",
	}
}

// saveToFile writes the current configuration to its file
func (c *Config) saveToFile() error {
	if dir := filepath.Dir(c.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprint(w, "; chayakada configuration file\n")
	fmt.Fprint(w, "; Generated automatically - modify with care\n")
	fmt.Fprint(w, ";\n\n")

	written := make(map[string]bool)
	sections := append([]string{}, sectionOrder...)
	for name := range c.settings {
		if !contains(sectionOrder, name) {
			sections = append(sections, name)
		}
	}

	for _, section := range sections {
		settings, exists := c.settings[section]
		if !exists || written[section] {
			continue
		}
		written[section] = true
		fmt.Fprintf(w, "[%s]\n", section)

		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "%s = %s\n", key, settings[key])
		}
		fmt.Fprint(w, "\n")
	}

	return w.Flush()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// GetString returns a string value from the configuration
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	if sectionMap, exists := globalConfig.settings[section]; exists {
		if value, exists := sectionMap[key]; exists {
			return value
		}
	}

	return defaultValue
}

// GetInt returns an integer value from the configuration
func GetInt(section, key string, defaultValue int) int {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(str); err == nil {
		return value
	}

	return defaultValue
}

// GetBool returns a boolean value from the configuration
func GetBool(section, key string, defaultValue bool) bool {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseBool(str); err == nil {
		return value
	}

	return defaultValue
}

// GetDuration returns a duration value from the configuration
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := time.ParseDuration(str); err == nil {
		return value
	}

	return defaultValue
}

// GetSection returns a copy of all key-value pairs of a section
func GetSection(sectionName string) map[string]string {
	result := make(map[string]string)
	if globalConfig == nil {
		return result
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	for key, value := range globalConfig.settings[sectionName] {
		result[key] = value
	}
	return result
}

// SetString sets a string value in the configuration
func SetString(section, key, value string) {
	if globalConfig == nil {
		return
	}

	globalConfig.mu.Lock()
	defer globalConfig.mu.Unlock()

	if globalConfig.settings[section] == nil {
		globalConfig.settings[section] = make(map[string]string)
	}

	globalConfig.settings[section][key] = value
}
