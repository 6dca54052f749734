package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	defaultKeyEnv = map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
		"gemini":    "GEMINI_API_KEY",
	}
	defaultModel = map[string]string{
		"openai":    "gpt-4o-mini",
		"anthropic": "claude-3-5-haiku-latest",
		"gemini":    "gemini-1.5-flash",
	}
)

// Wizard builds a starter configuration interactively. It records the
// names of API key environment variables, never the keys themselves.
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a new configuration wizard
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard
func (w *Wizard) Run() (*Config, error) {
	fmt.Fprintln(w.out, "=== agentcore configuration ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	validator := NewValidator()

	primary, err := w.provider("Primary provider", "openai", false)
	if err != nil {
		return nil, err
	}
	cfg.Providers.Primary = primary

	fallback, err := w.provider("Fallback provider", "", true)
	if err != nil {
		return nil, err
	}
	if fallback.Provider != "" {
		cfg.Providers.Fallback = &fallback
	}

	model, err := w.ask("Model for the default agent", defaultModel[primary.Provider])
	if err != nil {
		return nil, err
	}
	cfg.Agents[0].Model = model

	baseURL, err := w.ask("Knowledge service URL (blank to disable)", "")
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.Knowledge.BaseURL = baseURL
		cfg.Knowledge.APIKeyEnv = "AGENTCORE_KNOWLEDGE_API_KEY"
		cfg.Agents[0].Tools = append(cfg.Agents[0].Tools, "searchKnowledgeBase")
	}

	level, err := w.ask("Log level (debug/info/warn/error)", "info")
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
		level = "info"
	}
	cfg.Logging.Level = level

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

// provider asks for a provider name until it is valid. With optional set,
// a blank answer returns an empty config.
func (w *Wizard) provider(label, def string, optional bool) (ProviderConfig, error) {
	for {
		prompt := label + " (openai/anthropic/gemini)"
		if optional {
			prompt += ", blank for none"
		}
		name, err := w.ask(prompt, def)
		if err != nil {
			return ProviderConfig{}, err
		}
		if name == "" && optional {
			return ProviderConfig{}, nil
		}
		name = strings.ToLower(name)
		if _, ok := defaultKeyEnv[name]; !ok {
			fmt.Fprintf(w.out, "Error: unsupported provider %q\n", name)
			continue
		}

		env, err := w.ask("Environment variable holding the "+name+" API key", defaultKeyEnv[name])
		if err != nil {
			return ProviderConfig{}, err
		}

		return ProviderConfig{
			Provider:     name,
			APIKeyEnv:    env,
			TimeoutMs:    30000,
			MaxRetries:   3,
			RetryDelayMs: 1000,
		}, nil
	}
}

func (w *Wizard) ask(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", prompt, def)
	} else {
		fmt.Fprintf(w.out, "%s: ", prompt)
	}
	line, err := w.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

// readLine returns the next trimmed line. Running out of input answers
// every remaining prompt with its default.
func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
