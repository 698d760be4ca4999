package model

import "time"

// --- Configuration Structures ---

// Config is loaded once at startup and handed to whoever needs it.
type Config struct {
	App      AppConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Assets   AssetsConfig
	Fiscal   FiscalConfig
	QR       QRConfig
	Print    PrintConfig
	RawIO    RawIOConfig
	Printers PrintersConfig
	Agent    AgentConfig
	Chrome   ChromeConfig
}

type AppConfig struct {
	Name    string
	Env     string // development, production
	Version string
}

// IsProduction reports whether production endpoints should be used.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxBodyBytes   int64
}

type AssetsConfig struct {
	BaseURLDev   string
	BaseURLProd  string
	Timeout      time.Duration
	MaxRedirects int
	MaxBytes     int64
}

type FiscalConfig struct {
	LookupBaseURL string
}

type QRConfig struct {
	Size     int
	Recovery string // low, medium, high, highest
}

type PrintConfig struct {
	Mode         string // html, text
	PaperWidthMM int    // 58 or 80
	DotWidth     int    // printable dots per line
	FeedLines    int
	Cut          bool
	CodePage     string // cp437, cp850, cp858
	RenderDelay  time.Duration
	Background   bool
	MaxRawPixels int // largest width or height accepted by PrintRaw
}

type RawIOConfig struct {
	HelperTimeout time.Duration
	TempDir       string
	LPPath        string
	SerialBaud    int
}

type PrintersConfig struct {
	File        string
	ScanNetwork bool
	ScanPort    int
}

type AgentConfig struct {
	Enabled      bool
	APIURL       string
	WSURL        string
	APIKey       string
	TenantID     int
	RestaurantID int
	Printer      string
	AgentKey     string
}

type ChromeConfig struct {
	ExecPath  string
	RemoteURL string
	NoSandbox bool
	Timeout   time.Duration
}

// Printer is a network printer remembered in printers.json.
type Printer struct {
	Name         string `json:"name"`
	IP           string `json:"ip"`
	Port         int    `json:"port"`
	Description  string `json:"description"`
	IsEnabled    bool   `json:"isEnabled"`
	TenantID     int    `json:"tenantId"`
	RestaurantID int    `json:"restaurantId,omitempty"`
	AgentKey     string `json:"agent_key,omitempty"` // Assigned by server
}
