package utils

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SystemInfo holds information about the current system
type SystemInfo struct {
	OS            string
	Architecture  string
	ChromePresent bool
	ChromePath    string
}

// DetectSystem returns information about the current operating system,
// architecture and Chrome installation
func DetectSystem() SystemInfo {
	present, path := CheckChrome()
	return SystemInfo{
		OS:            runtime.GOOS,
		Architecture:  runtime.GOARCH,
		ChromePresent: present,
		ChromePath:    path,
	}
}

// --------------------------------------
// CHROME CHECK
// --------------------------------------

// CheckChrome checks if google-chrome or chromium is installed
func CheckChrome() (bool, string) {
	binaries := []string{
		"google-chrome",
		"google-chrome-stable",
		"chromium",
		"chromium-browser",
		"chrome",
	}

	for _, bin := range binaries {
		path, err := exec.LookPath(bin)
		if err == nil {
			return true, path
		}
	}

	for _, path := range chromePaths(runtime.GOOS) {
		if _, err := os.Stat(path); err == nil {
			return true, path
		}
	}

	return false, ""
}

// chromePaths returns common Chrome/Chromium installation paths
func chromePaths(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}

	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}

	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Chromium\Application\chromium.exe`,
			`C:\Program Files (x86)\Chromium\Application\chromium.exe`,
		}

	default:
		return nil
	}
}

// --------------------------------------
// VALIDATION
// --------------------------------------

// ValidateSystemRequirements checks that a browser is available for html
// rendering. Text mode does not need one.
func ValidateSystemRequirements(log *zap.Logger, printMode string) (SystemInfo, error) {
	info := DetectSystem()
	log.Info("system detected",
		zap.String("os", info.OS),
		zap.String("arch", info.Architecture))

	if printMode != "html" {
		return info, nil
	}

	if info.ChromePresent {
		log.Info("chrome found",
			zap.String("path", info.ChromePath),
			zap.String("version", chromeVersion(info.ChromePath)))
		return info, nil
	}

	log.Error("chrome/chromium not found, it is required to render receipts in html mode")
	for _, line := range installInstructions(info.OS) {
		log.Info(line)
	}
	return info, fmt.Errorf("chrome/chromium is required but not installed")
}

func chromeVersion(path string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

// --------------------------------------
// INSTALLATION INSTRUCTIONS
// --------------------------------------

func installInstructions(osType string) []string {
	switch osType {
	case "linux":
		return []string{
			"Ubuntu / Debian: sudo apt install chromium-browser",
			"Fedora: sudo dnf install chromium",
			"Arch: sudo pacman -S chromium",
			"Or set print.mode = \"text\" to print without a browser",
		}
	case "darwin":
		return []string{
			"Homebrew: brew install --cask google-chrome",
			"Or Chromium: brew install chromium",
		}
	case "windows":
		return []string{
			"Download Google Chrome: https://www.google.com/chrome/",
			"Or set print.mode = \"text\" to print without a browser",
		}
	default:
		return []string{"Please install Chrome or Chromium for your OS."}
	}
}
