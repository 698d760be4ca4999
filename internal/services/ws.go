package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/logger"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-bridge/internal/utils"
)

const defaultReconnectDelay = 5 * time.Second

// ReceiptPrinter is what the agent needs from the print service.
type ReceiptPrinter interface {
	PrintReceipt(ctx context.Context, printer string, job *model.ReceiptJob) model.Result
	OpenCashDrawer(ctx context.Context, printer string) model.Result
}

// --- WebSocket Agent Logic ---

// Agent keeps a WebSocket open to the cloud and prints the jobs it is sent.
type Agent struct {
	wsURL          string
	apiKey         string
	agentKey       string
	printer        string
	service        ReceiptPrinter
	dialer         *websocket.Dialer
	reconnectDelay time.Duration
	log            *zap.Logger
}

func NewAgent(cfg model.AgentConfig, agentKey string, service ReceiptPrinter, log *zap.Logger) *Agent {
	return &Agent{
		wsURL:          cfg.WSURL,
		apiKey:         cfg.APIKey,
		agentKey:       agentKey,
		printer:        cfg.Printer,
		service:        service,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: defaultReconnectDelay,
		log:            logger.OrNop(log).Named("agent").With(zap.String("printer", cfg.Printer)),
	}
}

// Run connects and reconnects until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) {
	header := http.Header{}
	header.Add("X-Api-Key", a.apiKey)

	a.log.Info("connecting to websocket", zap.String("url", a.wsURL))
	for {
		conn, _, err := a.dialer.DialContext(ctx, a.wsURL, header)
		if err != nil {
			a.log.Warn("connection failed, retrying", zap.Error(err), zap.Duration("delay", a.reconnectDelay))
		} else {
			a.log.Info("connected")
			a.handleConnection(ctx, conn)
			conn.Close()
			a.log.Info("disconnected, reconnecting", zap.Duration("delay", a.reconnectDelay))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.reconnectDelay):
		}
	}
}

func (a *Agent) handleConnection(ctx context.Context, conn *websocket.Conn) {
	// ReadJSON does not watch ctx; closing the connection unblocks it
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	regMsg := model.WSMessage{
		Type:     model.MessageTypeRegister,
		AgentKey: a.agentKey,
	}
	if err := conn.WriteJSON(regMsg); err != nil {
		a.log.Warn("failed to send register", zap.Error(err))
		return
	}

	for {
		var msg model.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				a.log.Warn("read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case model.MessageTypeRegistered:
			a.log.Info("registered with server")

		case model.MessageTypePing:
			a.reply(conn, model.WSMessage{Type: model.MessageTypePong, AgentKey: a.agentKey})

		case model.MessageTypePrintReceipt:
			a.reply(conn, a.handlePrintJob(ctx, msg))

		case model.MessageTypeOpenDrawer:
			a.reply(conn, a.handleOpenDrawer(ctx, msg))

		case model.MessageTypeUnregister:
			a.log.Info("server requested unregister")
			return

		default:
			a.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
		}
	}
}

func (a *Agent) handlePrintJob(ctx context.Context, msg model.WSMessage) model.WSMessage {
	var job model.ReceiptJob
	if err := json.Unmarshal(msg.Job, &job); err != nil {
		a.log.Warn("invalid receipt job", zap.String("job_id", msg.JobID), zap.Error(err))
		return a.outcome(msg, model.Fail(fmt.Sprintf("invalid receipt job: %v", err)))
	}
	a.log.Info("received receipt job", zap.String("job_id", msg.JobID), zap.String("order", job.OrderNumber))
	return a.outcome(msg, a.service.PrintReceipt(ctx, a.target(msg), &job))
}

func (a *Agent) handleOpenDrawer(ctx context.Context, msg model.WSMessage) model.WSMessage {
	a.log.Info("received drawer request", zap.String("job_id", msg.JobID))
	return a.outcome(msg, a.service.OpenCashDrawer(ctx, a.target(msg)))
}

func (a *Agent) target(msg model.WSMessage) string {
	if msg.Printer != "" {
		return msg.Printer
	}
	return a.printer
}

func (a *Agent) outcome(msg model.WSMessage, res model.Result) model.WSMessage {
	out := model.WSMessage{
		Type:     model.MessageTypePrinted,
		AgentKey: a.agentKey,
		JobID:    msg.JobID,
		Printer:  a.target(msg),
	}
	if !res.Success {
		out.Type = model.MessageTypePrintFailed
		out.Error = res.Error
	}
	return out
}

func (a *Agent) reply(conn *websocket.Conn, msg model.WSMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		a.log.Warn("failed to send reply", zap.String("type", string(msg.Type)), zap.Error(err))
	}
}

// EnsureAgentKey returns the agent key for the configured printer. It is
// taken from the config, then the printer registry, then the printers the
// server already knows, and finally by registering the printer.
func EnsureAgentKey(ctx context.Context, cfg model.AgentConfig, api *APIClient, dir *PrinterDirectory, log *zap.Logger) (string, error) {
	log = logger.OrNop(log)
	if cfg.AgentKey != "" {
		return cfg.AgentKey, nil
	}

	var local *model.Printer
	registry, err := dir.Registry()
	if err != nil {
		log.Warn("failed to read printer registry", zap.Error(err))
	}
	for i := range registry {
		if registry[i].Name == cfg.Printer {
			local = &registry[i]
			break
		}
	}
	if local != nil && local.AgentKey != "" {
		return local.AgentKey, nil
	}

	remote, err := api.ListPrinters(ctx)
	if err != nil {
		log.Warn("failed to list printers on server", zap.Error(err))
	}
	for _, p := range remote {
		if p.Name == cfg.Printer && p.AgentKey != "" {
			log.Info("reusing agent key from server", zap.String("printer", p.Name))
			return p.AgentKey, nil
		}
	}

	p := model.Printer{
		Name:         cfg.Printer,
		IsEnabled:    true,
		TenantID:     cfg.TenantID,
		RestaurantID: cfg.RestaurantID,
	}
	if local != nil {
		p = *local
	}
	log.Info("registering printer with server", zap.String("printer", p.Name))
	if err := api.RegisterPrinter(ctx, &p); err != nil {
		return "", fmt.Errorf("failed to register %s: %w", p.Name, err)
	}

	if local != nil && dir != nil && dir.registryFile != "" {
		if err := utils.UpdatePrinter(dir.registryFile, p); err != nil {
			log.Warn("failed to store agent key", zap.Error(err))
		}
	} else {
		log.Info("printer registered; set agent.agent_key to keep this key", zap.String("agent_key", p.AgentKey))
	}
	return p.AgentKey, nil
}
