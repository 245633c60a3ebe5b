package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rohankatakam/repograph/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store API credentials and choose the model provider",
	Long: `Interactive setup for RepoGraph.

API keys and the GitHub token go to the OS keychain when one is available;
everything else is written to ~/.repograph/config.yaml. Keys are never
written to the config file.`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)
	km := config.NewKeyringManager()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("locate home directory: %w", err)
	}
	configPath := filepath.Join(homeDir, ".repograph", "config.yaml")

	fmt.Println("🔧 RepoGraph configuration")
	fmt.Println()

	// Step 1: provider
	fmt.Println("Step 1/3: Model provider")
	fmt.Println("  1. gemini (default)")
	fmt.Println("  2. openai")
	fmt.Printf("Current: %s\n", cfg.LLM.Provider)
	fmt.Print("Select provider (1-2) or press Enter to keep current: ")
	switch readLine(reader) {
	case "1":
		cfg.LLM.Provider = "gemini"
	case "2":
		cfg.LLM.Provider = "openai"
	}
	fmt.Printf("✅ Using %s\n\n", cfg.LLM.Provider)

	// Step 2: credentials
	fmt.Println("Step 2/3: Credentials")
	if !km.IsAvailable() {
		fmt.Println("⚠️  No OS keychain available; export GEMINI_API_KEY, OPENAI_API_KEY and GITHUB_TOKEN instead")
	} else {
		item, label := config.KeyringGeminiKeyItem, "Gemini API key"
		if cfg.LLM.Provider == "openai" {
			item, label = config.KeyringOpenAIKeyItem, "OpenAI API key"
		}
		if err := promptSecret(reader, km, item, label); err != nil {
			return err
		}
		if err := promptSecret(reader, km, config.KeyringGitHubTokenItem, "GitHub token (optional, raises rate limits)"); err != nil {
			return err
		}
		fmt.Printf("   📍 %s\n", keychainLocation())
	}
	fmt.Println()

	// Step 3: save
	fmt.Println("Step 3/3: Save configuration")
	fmt.Printf("Save to: %s\n", configPath)
	fmt.Print("Confirm? (Y/n): ")
	if resp := strings.ToLower(readLine(reader)); resp != "" && resp != "y" {
		fmt.Println("⏭️  Configuration not saved")
		return nil
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}
	fmt.Println("✅ Configuration saved!")
	fmt.Println()
	fmt.Println("Next: repograph serve, then repograph explain <repository url> <path>")
	return nil
}

// promptSecret reads a secret without echo and stores it; an empty answer
// keeps the existing value
func promptSecret(reader *bufio.Reader, km *config.KeyringManager, item, label string) error {
	fmt.Printf("%s (Enter to keep current): ", label)

	var secret string
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read %s: %w", label, err)
		}
		secret = strings.TrimSpace(string(raw))
	} else {
		secret = readLine(reader)
	}

	if secret == "" {
		return nil
	}
	if err := km.Set(item, secret); err != nil {
		return err
	}
	fmt.Printf("✅ %s saved to keychain\n", label)
	return nil
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func keychainLocation() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain Access.app → 'repograph'"
	case "windows":
		return "Windows Credential Manager → 'repograph'"
	case "linux":
		return "Linux Secret Service (libsecret)"
	default:
		return "OS Keychain"
	}
}
