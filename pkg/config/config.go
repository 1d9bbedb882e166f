// Package config provides INI-style configuration parsing with access
// tracking: options and sections that were never read can be reported so
// typos in the config file surface at startup instead of silently using
// defaults.
package config

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Config provides access to a parsed configuration file.
type Config struct {
	mu       sync.RWMutex
	sections map[string]*Section
	order    []string // Maintains section order

	accessedSections map[string]struct{}
}

// New creates a new empty Config.
func New() *Config {
	return &Config{
		sections:         make(map[string]*Section),
		accessedSections: make(map[string]struct{}),
	}
}

// Load reads a configuration file and returns a Config.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: unable to open %s: %w", path, err)
	}
	defer f.Close()

	c := New()
	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: error reading %s: %w", path, err)
	}
	if err := c.parseLines(lines); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadString parses a configuration from a string.
func LoadString(data string) (*Config, error) {
	c := New()
	if err := c.parseLines(strings.Split(data, "\n")); err != nil {
		return nil, err
	}
	return c, nil
}

// parseLines parses config lines into sections.
func (c *Config) parseLines(rawLines []string) error {
	var currentSection string
	var currentOptions map[string]string

	for lineNum, rawLine := range rawLines {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		// Strip comments
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if line == "" {
				continue
			}
		}

		// Section header
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if currentSection != "" {
				c.addSection(currentSection, currentOptions)
			}
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			if currentSection == "" {
				return fmt.Errorf("config: empty section header at line %d", lineNum+1)
			}
			currentOptions = make(map[string]string)
			continue
		}

		// Skip options before first section
		if currentSection == "" {
			continue
		}

		// Parse key: value or key = value
		kv := strings.SplitN(line, ":", 2)
		if len(kv) != 2 {
			kv = strings.SplitN(line, "=", 2)
		}
		if len(kv) != 2 {
			continue
		}

		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if key == "" {
			continue
		}
		currentOptions[key] = value
	}

	if currentSection != "" {
		c.addSection(currentSection, currentOptions)
	}
	return nil
}

// addSection adds a section, merging into an existing one of the same name.
func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sections[name]; ok {
		for k, v := range options {
			existing.options[strings.ToLower(k)] = v
		}
		return
	}
	c.sections[name] = newSection(name, options)
	c.order = append(c.order, name)
}

// GetSection returns a Section by name, or an error if not found.
func (c *Config) GetSection(name string) (*Section, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, ok := c.sections[name]
	if !ok {
		return nil, ErrMissingSection(name)
	}
	c.accessedSections[name] = struct{}{}
	return sec, nil
}

// GetSectionOptional returns a Section if it exists, or nil.
func (c *Config) GetSectionOptional(name string) *Section {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec, ok := c.sections[name]
	if ok {
		c.accessedSections[name] = struct{}{}
	}
	return sec
}

// HasSection checks if a section exists.
func (c *Config) HasSection(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sections[name]
	return ok
}

// GetSectionNames returns all section names in file order.
func (c *Config) GetSectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, len(c.order))
	copy(result, c.order)
	return result
}

// GetPrefixSections returns all sections whose name starts with prefix,
// in file order. Used for the per-servo sections ("servo base", ...).
func (c *Config) GetPrefixSections(prefix string) []*Section {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result []*Section
	for _, name := range c.order {
		if strings.HasPrefix(name, prefix) {
			c.accessedSections[name] = struct{}{}
			result = append(result, c.sections[name])
		}
	}
	return result
}

// GetUnusedSections returns sections that were never accessed.
func (c *Config) GetUnusedSections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []string
	for name := range c.sections {
		if _, ok := c.accessedSections[name]; !ok {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result
}

// CheckUnusedOptions returns an error naming every section with options
// that were parsed but never read.
func (c *Config) CheckUnusedOptions() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var problems []string
	for name, sec := range c.sections {
		unused := sec.GetUnusedOptions()
		if len(unused) > 0 {
			sort.Strings(unused)
			problems = append(problems, fmt.Sprintf("[%s]: unused options %v", name, unused))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return NewConfigError("", "", strings.Join(problems, "; "))
	}
	return nil
}
