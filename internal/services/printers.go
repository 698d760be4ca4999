package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/rawio"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/utils"
)

const (
	scanWorkers      = 50
	scanProbeTimeout = 300 * time.Millisecond
)

// --- Printer Directory ---

// PrinterDirectory knows every printer the bridge can reach: OS queues,
// network printers from printers.json, serial ports and, optionally,
// whatever answers on the raw port in the local subnet.
type PrinterDirectory struct {
	platform     rawio.DeviceLister
	registryFile string
	scan         bool
	scanPort     int
	serialPorts  func() ([]rawio.Device, error)
	scanner      func(ctx context.Context, port int) ([]string, error)
	log          *zap.Logger
}

// NewPrinterDirectory lists OS printers through platform when it can
// enumerate devices.
func NewPrinterDirectory(platform rawio.RawWriteStrategy, cfg model.PrintersConfig, log *zap.Logger) *PrinterDirectory {
	lister, _ := platform.(rawio.DeviceLister)
	return &PrinterDirectory{
		platform:     lister,
		registryFile: cfg.File,
		scan:         cfg.ScanNetwork,
		scanPort:     cfg.ScanPort,
		serialPorts:  rawio.ListSerialPorts,
		scanner:      ScanSubnet,
		log:          logger.OrNop(log).Named("printers"),
	}
}

// List gathers printers from every source. A source that fails is logged
// and skipped.
func (d *PrinterDirectory) List(ctx context.Context) []model.PrinterInfo {
	printers := []model.PrinterInfo{}
	if d == nil {
		return printers
	}

	if d.platform != nil {
		devices, err := d.platform.ListDevices(ctx)
		if err != nil {
			d.log.Warn("failed to list system printers", zap.Error(err))
		}
		for _, dev := range devices {
			printers = append(printers, model.PrinterInfo{Name: dev.Name, IsDefault: dev.IsDefault, Kind: model.PrinterKindSpooler})
		}
	}

	known := make(map[string]struct{})
	registry, err := d.Registry()
	if err != nil {
		d.log.Warn("failed to read printer registry", zap.String("file", d.registryFile), zap.Error(err))
	}
	for _, p := range registry {
		known[p.IP] = struct{}{}
		if !p.IsEnabled {
			continue
		}
		printers = append(printers, model.PrinterInfo{Name: p.Name, Kind: model.PrinterKindNetwork, Address: utils.NetworkAddress(p)})
	}

	if d.serialPorts != nil {
		ports, err := d.serialPorts()
		if err != nil {
			d.log.Warn("failed to list serial ports", zap.Error(err))
		}
		for _, dev := range ports {
			printers = append(printers, model.PrinterInfo{Name: dev.Name, Kind: model.PrinterKindSerial})
		}
	}

	if d.scan && d.scanner != nil {
		ips, err := d.scanner(ctx, d.scanPort)
		if err != nil {
			d.log.Warn("network scan failed", zap.Error(err))
		}
		for _, ip := range ips {
			if _, ok := known[ip]; ok {
				continue
			}
			addr := utils.NetworkAddress(model.Printer{IP: ip, Port: d.scanPort})
			printers = append(printers, model.PrinterInfo{Name: addr, Kind: model.PrinterKindNetwork, Address: addr})
		}
	}
	return printers
}

// Registry returns the printers stored in printers.json.
func (d *PrinterDirectory) Registry() ([]model.Printer, error) {
	if d == nil || d.registryFile == "" {
		return nil, nil
	}
	return utils.LoadPrinters(d.registryFile)
}

// Resolve maps a registry printer name to its tcp:// address. Any other
// name is returned unchanged.
func (d *PrinterDirectory) Resolve(name string) string {
	if d == nil || name == "" || strings.Contains(name, "://") || strings.HasPrefix(name, "serial:") {
		return name
	}
	registry, err := d.Registry()
	if err != nil {
		d.log.Warn("failed to read printer registry", zap.Error(err))
		return name
	}
	for _, p := range registry {
		if p.IsEnabled && p.Name == name {
			return utils.NetworkAddress(p)
		}
	}
	return name
}

// --- Discovery Logic ---

// ScanSubnet dials every host of the local /24 on port and returns the
// addresses that accept a connection.
func ScanSubnet(ctx context.Context, port int) ([]string, error) {
	localIP, err := utils.DetectLocalIP()
	if err != nil {
		return nil, err
	}
	parts := strings.Split(localIP, ".")
	subnet := strings.Join(parts[:3], ".")

	ipChan := make(chan string)
	foundChan := make(chan string, 256)
	var wg sync.WaitGroup

	for i := 0; i < scanWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ip := range ipChan {
				if utils.Probe(ip, port, scanProbeTimeout) {
					foundChan <- ip
				}
			}
		}()
	}

	go func() {
		defer close(ipChan)
		for i := 1; i <= 254; i++ {
			select {
			case ipChan <- fmt.Sprintf("%s.%d", subnet, i):
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(foundChan)
	}()

	var found []string
	for ip := range foundChan {
		found = append(found, ip)
	}
	return found, ctx.Err()
}

// DiscoverPrinters scans the subnet and asks on out/in which of the found
// printers to keep.
func DiscoverPrinters(ctx context.Context, cfg model.Config, in io.Reader, out io.Writer) ([]model.Printer, error) {
	fmt.Fprintf(out, "Scanning local subnet on port %d...\n", cfg.Printers.ScanPort)
	ips, err := ScanSubnet(ctx, cfg.Printers.ScanPort)
	if err != nil {
		return nil, err
	}

	var newPrinters []model.Printer
	reader := bufio.NewReader(in)

	for _, ip := range ips {
		fmt.Fprintf(out, "Found printer at %s. Add this printer? (y/n): ", ip)
		ans, _ := reader.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(ans)) != "y" {
			continue
		}
		p := model.Printer{
			IP:           ip,
			Port:         cfg.Printers.ScanPort,
			IsEnabled:    true,
			TenantID:     cfg.Agent.TenantID,
			RestaurantID: cfg.Agent.RestaurantID,
		}

		fmt.Fprint(out, "  Name (e.g., Kitchen): ")
		p.Name, _ = reader.ReadString('\n')
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			p.Name = ip
		}

		fmt.Fprint(out, "  Description (e.g., Thermal Printer): ")
		p.Description, _ = reader.ReadString('\n')
		p.Description = strings.TrimSpace(p.Description)

		newPrinters = append(newPrinters, p)
	}
	return newPrinters, nil
}

// --- API Registration ---

// APIClient talks to the cloud API the agent registers with.
type APIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewAPIClient(baseURL, apiKey string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type apiResponse struct {
	Data struct {
		AgentKey string          `json:"agent_key"`
		Printers []model.Printer `json:"printers"`
	} `json:"data"`
}

// RegisterPrinter registers p and stores the agent key the server assigns.
func (c *APIClient) RegisterPrinter(ctx context.Context, p *model.Printer) error {
	jsonData, err := json.Marshal(p)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	if resp.Data.AgentKey == "" {
		return fmt.Errorf("no agent_key found in response")
	}
	p.AgentKey = resp.Data.AgentKey
	return nil
}

// ListPrinters returns the printers the server already knows.
func (c *APIClient) ListPrinters(ctx context.Context) ([]model.Printer, error) {
	resp, err := c.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	return resp.Data.Printers, nil
}

func (c *APIClient) do(ctx context.Context, method string, body io.Reader) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/printers", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API Error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode API response: %w", err)
	}
	return &out, nil
}
