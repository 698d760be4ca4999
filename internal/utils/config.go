package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
)

const envPrefix = "PRINTBRIDGE"

// LoadConfig reads configuration with the following priority:
// 1. Environment variables with PRINTBRIDGE_ prefix (e.g. PRINTBRIDGE_HTTP_ADDR)
// 2. The config file (explicit path, or config.toml in . and ./config)
// 3. Built-in defaults
func LoadConfig(path string) (*model.Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults and env vars still apply
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &model.Config{
		App: model.AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: model.LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: model.HTTPConfig{
			Addr:           v.GetString("http.addr"),
			AllowedOrigins: v.GetStringSlice("http.allowed_origins"),
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxBodyBytes:   v.GetInt64("http.max_body_bytes"),
		},
		Assets: model.AssetsConfig{
			BaseURLDev:   v.GetString("assets.base_url_dev"),
			BaseURLProd:  v.GetString("assets.base_url_prod"),
			Timeout:      v.GetDuration("assets.timeout"),
			MaxRedirects: v.GetInt("assets.max_redirects"),
			MaxBytes:     v.GetInt64("assets.max_bytes"),
		},
		Fiscal: model.FiscalConfig{
			LookupBaseURL: v.GetString("fiscal.lookup_base_url"),
		},
		QR: model.QRConfig{
			Size:     v.GetInt("qr.size"),
			Recovery: v.GetString("qr.recovery"),
		},
		Print: model.PrintConfig{
			Mode:         v.GetString("print.mode"),
			PaperWidthMM: v.GetInt("print.paper_width_mm"),
			DotWidth:     v.GetInt("print.dot_width"),
			FeedLines:    v.GetInt("print.feed_lines"),
			Cut:          v.GetBool("print.cut"),
			CodePage:     v.GetString("print.code_page"),
			RenderDelay:  v.GetDuration("print.render_delay"),
			Background:   v.GetBool("print.background"),
			MaxRawPixels: v.GetInt("print.max_raw_pixels"),
		},
		RawIO: model.RawIOConfig{
			HelperTimeout: v.GetDuration("rawio.helper_timeout"),
			TempDir:       v.GetString("rawio.temp_dir"),
			LPPath:        v.GetString("rawio.lp_path"),
			SerialBaud:    v.GetInt("rawio.serial_baud"),
		},
		Printers: model.PrintersConfig{
			File:        v.GetString("printers.file"),
			ScanNetwork: v.GetBool("printers.scan_network"),
			ScanPort:    v.GetInt("printers.scan_port"),
		},
		Agent: model.AgentConfig{
			Enabled:      v.GetBool("agent.enabled"),
			APIURL:       v.GetString("agent.api_url"),
			WSURL:        v.GetString("agent.ws_url"),
			APIKey:       v.GetString("agent.api_key"),
			TenantID:     v.GetInt("agent.tenant_id"),
			RestaurantID: v.GetInt("agent.restaurant_id"),
			Printer:      v.GetString("agent.printer"),
			AgentKey:     v.GetString("agent.agent_key"),
		},
		Chrome: model.ChromeConfig{
			ExecPath:  v.GetString("chrome.exec_path"),
			RemoteURL: v.GetString("chrome.remote_url"),
			NoSandbox: v.GetBool("chrome.no_sandbox"),
			Timeout:   v.GetDuration("chrome.timeout"),
		},
	}

	// print.cut and print.background default to true, so only an explicit
	// value may turn them off
	if !v.IsSet("print.cut") {
		cfg.Print.Cut = true
	}
	if !v.IsSet("print.background") {
		cfg.Print.Background = true
	}

	ApplyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every zero field with its built-in default.
func ApplyDefaults(cfg *model.Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "perfect-menu-print-bridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = "127.0.0.1:8719"
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 120 * time.Second
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 8 << 20
	}
	if cfg.Assets.BaseURLDev == "" {
		cfg.Assets.BaseURLDev = "http://localhost:3000"
	}
	if cfg.Assets.BaseURLProd == "" {
		cfg.Assets.BaseURLProd = "https://app.perfect-menu.it"
	}
	if cfg.Assets.Timeout == 0 {
		cfg.Assets.Timeout = 5 * time.Second
	}
	if cfg.Assets.MaxRedirects == 0 {
		cfg.Assets.MaxRedirects = 5
	}
	if cfg.Assets.MaxBytes == 0 {
		cfg.Assets.MaxBytes = 5 << 20
	}
	if cfg.Fiscal.LookupBaseURL == "" {
		cfg.Fiscal.LookupBaseURL = "https://catalogo-vpfe.dian.gov.co/User/SearchDocument"
	}
	if cfg.QR.Size == 0 {
		cfg.QR.Size = 180
	}
	if cfg.QR.Recovery == "" {
		cfg.QR.Recovery = "medium"
	}
	if cfg.Print.Mode == "" {
		cfg.Print.Mode = "html"
	}
	if cfg.Print.PaperWidthMM == 0 {
		cfg.Print.PaperWidthMM = 80
	}
	if cfg.Print.DotWidth == 0 {
		if cfg.Print.PaperWidthMM == 58 {
			cfg.Print.DotWidth = 384
		} else {
			cfg.Print.DotWidth = 576
		}
	}
	if cfg.Print.FeedLines == 0 {
		cfg.Print.FeedLines = 3
	}
	if cfg.Print.CodePage == "" {
		cfg.Print.CodePage = "cp858"
	}
	if cfg.Print.RenderDelay == 0 {
		cfg.Print.RenderDelay = 300 * time.Millisecond
	}
	if cfg.Print.MaxRawPixels <= 0 {
		cfg.Print.MaxRawPixels = 8192
	}
	if cfg.RawIO.HelperTimeout == 0 {
		cfg.RawIO.HelperTimeout = 5 * time.Second
	}
	if cfg.RawIO.LPPath == "" {
		cfg.RawIO.LPPath = "lp"
	}
	if cfg.RawIO.SerialBaud == 0 {
		cfg.RawIO.SerialBaud = 9600
	}
	if cfg.Printers.File == "" {
		cfg.Printers.File = "config/printers.json"
	}
	if cfg.Printers.ScanPort == 0 {
		cfg.Printers.ScanPort = 9100
	}
	if cfg.Agent.APIURL == "" {
		cfg.Agent.APIURL = "https://api.perfect-menu.it"
	}
	if cfg.Agent.WSURL == "" {
		cfg.Agent.WSURL = "wss://ws.perfect-menu.it/agent"
	}
	if cfg.Chrome.Timeout == 0 {
		cfg.Chrome.Timeout = 30 * time.Second
	}
}

func validate(cfg *model.Config) error {
	switch cfg.Print.Mode {
	case "html", "text":
	default:
		return fmt.Errorf("print.mode must be html or text, got %q", cfg.Print.Mode)
	}
	if cfg.Print.PaperWidthMM != 58 && cfg.Print.PaperWidthMM != 80 {
		return fmt.Errorf("print.paper_width_mm must be 58 or 80, got %d", cfg.Print.PaperWidthMM)
	}
	if cfg.Print.DotWidth < 8 || cfg.Print.DotWidth%8 != 0 {
		return fmt.Errorf("print.dot_width must be a positive multiple of 8, got %d", cfg.Print.DotWidth)
	}
	if cfg.Assets.MaxRedirects < 0 {
		return fmt.Errorf("assets.max_redirects cannot be negative")
	}
	if cfg.Agent.Enabled {
		if cfg.Agent.APIKey == "" {
			return fmt.Errorf("agent.api_key is required when the agent is enabled")
		}
		if cfg.Agent.Printer == "" {
			return fmt.Errorf("agent.printer is required when the agent is enabled")
		}
	}
	return nil
}
