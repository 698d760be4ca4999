package utils

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

// --- Utility Functions ---

func DetectLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no local IPv4 address found")
}

// Probe reports whether something accepts TCP connections on ip:port.
func Probe(ip string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(ip, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// LoadPrinters reads the network printer registry. A missing file is an
// empty registry.
func LoadPrinters(printersFile string) ([]model.Printer, error) {
	if _, err := os.Stat(printersFile); os.IsNotExist(err) {
		return []model.Printer{}, nil
	}
	data, err := os.ReadFile(printersFile)
	if err != nil {
		return nil, err
	}
	var printers []model.Printer
	if err := json.Unmarshal(data, &printers); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", printersFile, err)
	}
	return printers, nil
}

// SavePrinters merges printers into the registry file. Entries are keyed by
// IP; an IP already present keeps its stored entry.
func SavePrinters(printersFile string, printers []model.Printer) error {
	// Ensure config directory exists
	configDir := filepath.Dir(printersFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	existingPrinters, err := LoadPrinters(printersFile)
	if err != nil {
		return fmt.Errorf("failed to read existing printers file: %w", err)
	}

	existingPrintersMap := make(map[string]struct{}, len(existingPrinters))
	for _, printer := range existingPrinters {
		existingPrintersMap[printer.IP] = struct{}{}
	}

	for _, printer := range printers {
		if _, exists := existingPrintersMap[printer.IP]; exists {
			continue
		}
		if printer.Port == 0 {
			printer.Port = 9100
		}
		existingPrinters = append(existingPrinters, printer)
		existingPrintersMap[printer.IP] = struct{}{}
	}

	data, err := json.MarshalIndent(existingPrinters, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(printersFile, data, 0644)
}

// NetworkAddress is the tcp:// target for a registry entry.
func NetworkAddress(p model.Printer) string {
	port := p.Port
	if port == 0 {
		port = 9100
	}
	return "tcp://" + net.JoinHostPort(p.IP, strconv.Itoa(port))
}

// UpdatePrinter replaces the registry entry with p's IP, adding it when
// there is none.
func UpdatePrinter(printersFile string, p model.Printer) error {
	printers, err := LoadPrinters(printersFile)
	if err != nil {
		return err
	}
	replaced := false
	for i := range printers {
		if printers[i].IP == p.IP {
			printers[i] = p
			replaced = true
		}
	}
	if !replaced {
		printers = append(printers, p)
	}

	if err := os.MkdirAll(filepath.Dir(printersFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(printers, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(printersFile, data, 0644)
}
