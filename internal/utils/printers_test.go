package utils

import (
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

func TestLoadPrinters_MissingFile(t *testing.T) {
	printers, err := LoadPrinters(filepath.Join(t.TempDir(), "printers.json"))
	require.NoError(t, err)
	assert.Empty(t, printers)
}

func TestSavePrinters_MergesByIP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "printers.json")

	require.NoError(t, SavePrinters(path, []model.Printer{
		{Name: "Kitchen", IP: "192.168.1.50", Port: 9100, IsEnabled: true},
	}))
	require.NoError(t, SavePrinters(path, []model.Printer{
		{Name: "Kitchen renamed", IP: "192.168.1.50"},
		{Name: "Bar", IP: "192.168.1.51"},
	}))

	printers, err := LoadPrinters(path)
	require.NoError(t, err)
	require.Len(t, printers, 2)
	assert.Equal(t, "Kitchen", printers[0].Name)
	assert.Equal(t, "Bar", printers[1].Name)
	assert.Equal(t, 9100, printers[1].Port)
}

func TestNetworkAddress(t *testing.T) {
	assert.Equal(t, "tcp://10.0.0.7:9100", NetworkAddress(model.Printer{IP: "10.0.0.7"}))
	assert.Equal(t, "tcp://10.0.0.7:9101", NetworkAddress(model.Printer{IP: "10.0.0.7", Port: 9101}))
}

func TestProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	assert.True(t, Probe("127.0.0.1", port, time.Second))

	require.NoError(t, ln.Close())
	assert.False(t, Probe("127.0.0.1", port, 200*time.Millisecond), "closed port "+strconv.Itoa(port))
}

func TestUpdatePrinter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printers.json")
	require.NoError(t, SavePrinters(path, []model.Printer{
		{Name: "Kitchen", IP: "192.168.1.50", IsEnabled: true},
	}))

	require.NoError(t, UpdatePrinter(path, model.Printer{Name: "Kitchen", IP: "192.168.1.50", Port: 9100, IsEnabled: true, AgentKey: "ak-1"}))
	require.NoError(t, UpdatePrinter(path, model.Printer{Name: "Bar", IP: "192.168.1.51", Port: 9100}))

	printers, err := LoadPrinters(path)
	require.NoError(t, err)
	require.Len(t, printers, 2)
	assert.Equal(t, "ak-1", printers[0].AgentKey)
	assert.Equal(t, "Bar", printers[1].Name)
}
